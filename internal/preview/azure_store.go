package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/anime-shed/plant-classifier-go/pkg/models"
)

// maxBlobSize bounds a downloaded preview.
const maxBlobSize = 32 << 20

// AzureStore keeps previews as blobs in one container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates a blob-backed store using shared key credentials.
func NewAzureStore(accountName, accountKey, container string) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureStore{client: client, container: container}, nil
}

func (s *AzureStore) Put(ctx context.Context, img models.Image) (string, error) {
	id := newID()
	_, err := s.client.UploadBuffer(ctx, s.container, id, img.Data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(ContentType(img)),
		},
		Metadata: map[string]*string{
			"filename": to.Ptr(img.Name),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload preview: %w", err)
	}
	return id, nil
}

func (s *AzureStore) Get(ctx context.Context, id string) (*models.Image, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, id, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download preview: %w", err)
	}

	body := resp.Body
	defer body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(body, maxBlobSize)); err != nil {
		return nil, fmt.Errorf("read preview: %w", err)
	}

	img := &models.Image{Data: buf.Bytes()}
	if resp.ContentType != nil {
		img.ContentType = *resp.ContentType
	}
	// Metadata keys come back with canonical header casing.
	for k, v := range resp.Metadata {
		if strings.EqualFold(k, "filename") && v != nil {
			img.Name = *v
		}
	}
	return img, nil
}

func (s *AzureStore) Release(ctx context.Context, id string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, id, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete preview: %w", err)
	}
	return nil
}
