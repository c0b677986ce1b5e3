package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	apperrors "speckle-inspector/internal/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureSource reads captures from Azure Blob Storage
type AzureSource struct {
	client *azblob.Client
}

// NewAzureSource creates a blob source authenticated with a shared key
func NewAzureSource(accountName string, accountKey string) (*AzureSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid Azure storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create Azure blob client", err)
	}

	return &AzureSource{client: client}, nil
}

// Open streams the blob at location. Locations are "container/blob/name"
// or a full blob URL.
func (s *AzureSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	containerName, blobName, err := parseBlobLocation(location)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("download of %s/%s failed", containerName, blobName), err)
	}
	return downloadResponse.Body, nil
}

func parseBlobLocation(location string) (string, string, error) {
	path := location
	if strings.Contains(location, "://") {
		parsedURL, err := url.Parse(location)
		if err != nil {
			return "", "", apperrors.NewValidationError("invalid blob URL", err)
		}
		path = parsedURL.Path
	}

	path = strings.TrimPrefix(path, "/")
	containerName, blobName, ok := strings.Cut(path, "/")
	if !ok || containerName == "" || blobName == "" {
		return "", "", apperrors.NewValidationError(fmt.Sprintf("blob location %q must name a container and a blob", location), nil)
	}
	return containerName, blobName, nil
}
