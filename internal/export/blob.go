package export

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/storage"

	"github.com/miradorstack/mirador-engage/internal/azure"
)

// Uploader stores an export artifact under name.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
}

// AzureBlobUploader writes block blobs into one container, creating it on
// first use.
type AzureBlobUploader struct {
	container *storage.Container

	once    sync.Once
	initErr error
}

// NewAzureBlobUploader authenticates and references the container.
func NewAzureBlobUploader(creds azure.Credentials, container string) (*AzureBlobUploader, error) {
	if container == "" {
		container = "engage-exports"
	}
	client, err := azure.NewClient(creds)
	if err != nil {
		return nil, err
	}
	blobs := client.GetBlobService()
	return &AzureBlobUploader{container: blobs.GetContainerReference(container)}, nil
}

// Upload writes r to the named blob, overwriting any existing blob.
func (u *AzureBlobUploader) Upload(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.once.Do(func() {
		_, u.initErr = u.container.CreateIfNotExists(&storage.CreateContainerOptions{Access: storage.ContainerAccessTypePrivate})
	})
	if u.initErr != nil {
		return fmt.Errorf("create container %s: %w", u.container.Name, u.initErr)
	}

	blob := u.container.GetBlobReference(name)
	blob.Properties.ContentType = "text/csv"
	if err := blob.CreateBlockBlobFromReader(r, nil); err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}
