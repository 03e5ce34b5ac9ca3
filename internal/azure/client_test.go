package azure

import (
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Credentials{}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if (Credentials{AccountName: "acct"}).Configured() {
		t.Fatalf("account name without key should not count as configured")
	}
}

func TestNewClientFromConnectionString(t *testing.T) {
	creds := Credentials{ConnectionString: "DefaultEndpointsProtocol=https;AccountName=engage;AccountKey=ZmFrZWtleQ==;EndpointSuffix=core.windows.net"}
	if !creds.Configured() {
		t.Fatalf("expected connection string to count as configured")
	}
	client, err := NewClient(creds)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_ = client.GetQueueService()
}
