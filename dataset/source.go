// Package dataset loads the static documents the engine serves: boundary
// GeoJSON, the request points and the per-region count tables.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	apperrors "github.com/civicmap/requestmap/pkg/errors"
	"github.com/civicmap/requestmap/pkg/resilience"
)

// Source opens named documents.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// DirSource reads documents from a local directory.
type DirSource struct {
	Dir string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir}
}

// Open opens dir/name. A missing file is a NotFound error.
func (s *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, filepath.Clean("/"+name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("dataset " + name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func (s *DirSource) String() string {
	return "dir:" + s.Dir
}

// BlobConfig holds Azure Blob Storage settings. ConnectionString takes
// precedence over ContainerURL with DefaultAzureCredential.
type BlobConfig struct {
	ConnectionString string
	ContainerURL     string
	ContainerName    string
}

// BlobSource reads documents from an Azure Blob Storage container.
type BlobSource struct {
	client *container.Client
	name   string
}

// NewBlobSource creates a blob-backed source.
func NewBlobSource(cfg BlobConfig) (*BlobSource, error) {
	var (
		client *container.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = container.NewClientFromConnectionString(cfg.ConnectionString, cfg.ContainerName, nil)
	case cfg.ContainerURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create credential: %w", credErr)
		}
		client, err = container.NewClient(cfg.ContainerURL, cred, nil)
	default:
		return nil, apperrors.Validation("blob source requires a connection string or container url")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create container client: %w", err)
	}

	name := cfg.ContainerName
	if name == "" {
		name = cfg.ContainerURL
	}
	return &BlobSource{client: client, name: name}, nil
}

// Open downloads the named blob, retrying transient failures. A missing
// blob is a NotFound error. The caller closes the body.
func (s *BlobSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	body, err := resilience.RetryWithResult(ctx, resilience.BlobRetryConfig(), func() (io.ReadCloser, error) {
		resp, err := s.client.NewBlobClient(name).DownloadStream(ctx, nil)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return nil, apperrors.NotFound("dataset " + name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	return body, nil
}

func (s *BlobSource) String() string {
	return "blob:" + s.name
}
