package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/storage"
	"github.com/damacus/iron-studio/internal/storage/local"
	"github.com/damacus/iron-studio/internal/storage/minio"
	"github.com/damacus/iron-studio/internal/storage/s3"
)

// AdminClient is the subset of madmin used for the usage widgets.
type AdminClient interface {
	ServerInfo(ctx context.Context, opts ...func(*madmin.ServerInfoOpts)) (madmin.InfoMessage, error)
	DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error)
}

// StoreFactory opens store handles and admin clients for a connection.
type StoreFactory interface {
	NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error)
	NewAdminClient(cfg storage.Config) (AdminClient, error)
}

// RealStoreFactory is the production implementation.
type RealStoreFactory struct {
	// LocalRoot confines local profiles. Local profiles are refused when
	// it is empty.
	LocalRoot string
}

// shouldUseSSL determines if SSL should be used based on the endpoint.
// Returns false for localhost, 127.0.0.1, and docker service names.
func shouldUseSSL(endpoint string) bool {
	if endpoint == "localhost:9000" || endpoint == "127.0.0.1:9000" {
		return false
	}
	// Docker service names (minio:9000, minio1:9000, ...), not domain names
	host := strings.Split(endpoint, ":")[0]
	if strings.HasPrefix(endpoint, "minio") && !strings.Contains(host, ".") && strings.Contains(endpoint, ":9000") {
		return false
	}
	return true
}

// StorageConfigFor converts a profile into driver settings. An unset UseSSL
// is derived from the endpoint.
func StorageConfigFor(p profiles.Profile) storage.Config {
	c := p.Config
	useSSL := shouldUseSSL(c.Endpoint)
	if c.UseSSL != nil {
		useSSL = *c.UseSSL
	}
	return storage.Config{
		Provider:     c.Provider,
		Endpoint:     c.Endpoint,
		Region:       c.Region,
		Bucket:       c.Bucket,
		AccessKey:    c.AccessKeyID,
		SecretKey:    c.SecretAccessKey,
		SessionToken: c.SessionToken,
		UseSSL:       useSSL,
		Root:         c.Root,
	}
}

func (f *RealStoreFactory) NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	var (
		st  storage.Store
		err error
	)
	switch cfg.Provider {
	case storage.ProviderMinIO:
		st, err = minio.New(cfg)
	case storage.ProviderS3, "":
		st, err = s3.New(ctx, cfg)
	case storage.ProviderLocal:
		st, err = f.newLocal(cfg.Root)
	default:
		err = errs.New(errs.KindInvalidInput, "unknown provider "+string(cfg.Provider))
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// newLocal opens a local store once root, symlinks followed, is known to
// stay below LocalRoot. The check runs before any directory is created.
func (f *RealStoreFactory) newLocal(root string) (storage.Store, error) {
	root, err := f.localRoot(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.LocalRoot, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "create local storage root", err)
	}
	base, err := filepath.EvalSymlinks(f.LocalRoot)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "resolve local storage root", err)
	}

	for cur := root; ; cur = filepath.Dir(cur) {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
				return nil, errs.New(errs.KindPermissionDenied, root+" resolves outside "+f.LocalRoot)
			}
			break
		}
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return nil, errs.New(errs.KindPermissionDenied, root+" is a dangling link")
		}
		if cur == filepath.Dir(cur) {
			break
		}
	}
	drv, err := local.New(root)
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// localRoot resolves root below LocalRoot. Relative roots are joined to it.
func (f *RealStoreFactory) localRoot(root string) (string, error) {
	if f.LocalRoot == "" {
		return "", errs.New(errs.KindPermissionDenied, "local storage profiles are disabled")
	}
	base, err := filepath.Abs(f.LocalRoot)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "resolve local storage root", err)
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}
	root = filepath.Clean(root)
	if root != base && !strings.HasPrefix(root, base+string(filepath.Separator)) {
		return "", errs.New(errs.KindPermissionDenied, root+" is outside "+base)
	}
	return root, nil
}

func (f *RealStoreFactory) NewAdminClient(cfg storage.Config) (AdminClient, error) {
	if cfg.Provider != storage.ProviderMinIO {
		return nil, errs.New(errs.KindInvalidInput, "usage is only available for MinIO profiles")
	}
	client, err := madmin.NewWithOptions(cfg.Endpoint, &madmin.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create admin client", err)
	}
	return client, nil
}

// TestConnection opens a throwaway handle for p and checks it can reach
// the bucket.
func TestConnection(ctx context.Context, factory StoreFactory, p profiles.Profile) error {
	st, err := factory.NewStore(ctx, StorageConfigFor(p))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if pinger, ok := st.(storage.Pinger); ok {
		return pinger.Ping(ctx)
	}
	_, err = st.List(ctx, "")
	return err
}
