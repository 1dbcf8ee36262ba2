package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/objectstorage/v1/containers"
	"go.uber.org/zap"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

// ErrBucketMissing is returned when the bucket does not exist and autocreate is off.
var ErrBucketMissing = errors.New("bucket does not exist and autocreate is disabled")

// NewAuthOptions maps the settings onto Keystone v3 password authentication.
// An explicit project scope takes precedence over the legacy tenant name.
func NewAuthOptions(cfg settings.ObjectStoreSettings) gophercloud.AuthOptions {
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: cfg.AuthURL,
		Username:         cfg.Credentials.Username,
		Password:         cfg.Credentials.Password,
		DomainName:       cfg.Credentials.DomainName,
		AllowReauth:      true,
	}
	if cfg.Scope.ProjectName != "" {
		opts.Scope = &gophercloud.AuthScope{
			ProjectName: cfg.Scope.ProjectName,
			DomainName:  cfg.Scope.ProjectDomainName,
		}
	} else {
		opts.TenantName = cfg.TenantName
	}
	return opts
}

// NewEndpointOpts selects the Swift endpoint from the service catalog.
func NewEndpointOpts(cfg settings.ObjectStoreSettings) gophercloud.EndpointOpts {
	return gophercloud.EndpointOpts{
		Name:         cfg.ServiceName,
		Region:       cfg.Region,
		Availability: gophercloud.AvailabilityPublic,
	}
}

// NewClient authenticates and returns a Swift service client.
func NewClient(ctx context.Context, cfg settings.ObjectStoreSettings, logger *zap.Logger) (*gophercloud.ServiceClient, error) {
	provider, err := openstack.AuthenticatedClient(ctx, NewAuthOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("authenticate against %s: %w", cfg.AuthURL, err)
	}

	client, err := openstack.NewObjectStorageV1(provider, NewEndpointOpts(cfg))
	if err != nil {
		return nil, fmt.Errorf("locate %s endpoint: %w", cfg.ServiceName, err)
	}

	logger.Debug("swift client configured",
		zap.String("endpoint", client.Endpoint),
		zap.String("region", cfg.Region),
		zap.String("bucket", cfg.Bucket),
	)
	return client, nil
}

// EnsureBucket checks that the configured bucket exists, creating it when
// autocreate is enabled.
func EnsureBucket(ctx context.Context, client *gophercloud.ServiceClient, cfg settings.ObjectStoreSettings) error {
	err := containers.Get(ctx, client, cfg.Bucket, nil).Err
	if err == nil {
		return nil
	}
	if !gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
		return fmt.Errorf("inspect bucket %s: %w", cfg.Bucket, err)
	}
	if !cfg.Autocreate {
		return fmt.Errorf("%s: %w", cfg.Bucket, ErrBucketMissing)
	}

	if err := containers.Create(ctx, client, cfg.Bucket, nil).Err; err != nil {
		return fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}
	return nil
}
