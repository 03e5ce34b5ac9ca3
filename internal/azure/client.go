package azure

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/storage"
)

// Credentials identify a storage account. ConnectionString takes precedence
// over AccountName/AccountKey.
type Credentials struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
}

// ErrNoCredentials is returned when neither form of credentials is set.
var ErrNoCredentials = errors.New("azure storage: connection string or account name and key required")

// Configured reports whether c carries usable credentials.
func (c Credentials) Configured() bool {
	return c.ConnectionString != "" || (c.AccountName != "" && c.AccountKey != "")
}

// NewClient builds a storage client from c.
func NewClient(c Credentials) (storage.Client, error) {
	var (
		client storage.Client
		err    error
	)
	switch {
	case c.ConnectionString != "":
		client, err = storage.NewClientFromConnectionString(c.ConnectionString)
	case c.AccountName != "" && c.AccountKey != "":
		client, err = storage.NewBasicClient(c.AccountName, c.AccountKey)
	default:
		return storage.Client{}, ErrNoCredentials
	}
	if err != nil {
		return storage.Client{}, fmt.Errorf("azure storage client: %w", err)
	}
	return client, nil
}
