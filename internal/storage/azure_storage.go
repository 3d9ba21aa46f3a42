package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobFetcher reads assets addressed as azblob://<container>/<blob path>
type AzureBlobFetcher struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureBlobFetcher creates a fetcher authenticated with a shared key
func NewAzureBlobFetcher(accountName, accountKey string, maxBytes int64) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureBlobFetcher{client: client, maxBytes: maxBytes}, nil
}

// ParseBlobURL splits azblob://container/path into container and blob name
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if parsed.Scheme != "azblob" {
		return "", "", fmt.Errorf("invalid blob URL scheme %q", parsed.Scheme)
	}
	container = parsed.Host
	blob = strings.TrimPrefix(parsed.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob URL must name a container and a blob: %q", blobURL)
	}
	return container, blob, nil
}

// Fetch downloads a blob
func (s *AzureBlobFetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	container, blob, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, blob)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	body := resp.Body
	defer body.Close()

	if s.maxBytes > 0 && resp.ContentLength != nil && *resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("%w: blob size %d > %d", ErrTooLarge, *resp.ContentLength, s.maxBytes)
	}
	return readLimited(body, s.maxBytes)
}
