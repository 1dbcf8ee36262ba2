package settings

import (
	"fmt"
	"net/url"
	"strings"
)

// Backend identifies an object store implementation.
type Backend string

// BackendSwift is OpenStack Swift authenticated through Keystone.
const BackendSwift Backend = "swift"

const (
	defaultDomainName  = "default"
	defaultServiceName = "swift"
)

var knownBackends = map[Backend]struct{}{
	BackendSwift: {},
}

// ObjectStoreSettings is the validated objectstore section.
type ObjectStoreSettings struct {
	Backend     Backend
	Bucket      string
	Autocreate  bool
	Credentials Credentials
	Scope       Scope
	TenantName  string
	Region      string
	AuthURL     string
	ServiceName string
}

// Credentials identify the Keystone user.
type Credentials struct {
	Username   string
	Password   string
	DomainName string
}

// Scope is the project the token is scoped to.
type Scope struct {
	ProjectName       string
	ProjectDomainName string
}

func parseObjectStore(s section) (ObjectStoreSettings, error) {
	var out ObjectStoreSettings

	backend, err := parseBackend(s)
	if err != nil {
		return out, err
	}
	out.Backend = backend

	args, err := s.requireChild("arguments")
	if err != nil {
		return out, err
	}

	if out.Bucket, err = args.requireStr("bucket"); err != nil {
		return out, err
	}
	if out.Autocreate, _, err = args.boolean("autocreate"); err != nil {
		return out, err
	}

	user, err := args.requireChild("user")
	if err != nil {
		return out, err
	}
	if out.Credentials.Username, err = user.requireStr("name"); err != nil {
		return out, err
	}
	if out.Credentials.Password, err = user.requireStr("password"); err != nil {
		return out, err
	}
	if out.Credentials.DomainName, err = domainName(user, defaultDomainName); err != nil {
		return out, err
	}

	scope, hasScope, err := args.child("scope")
	if err != nil {
		return out, err
	}
	if hasScope {
		project, err := scope.requireChild("project")
		if err != nil {
			return out, err
		}
		if out.Scope.ProjectName, err = project.requireStr("name"); err != nil {
			return out, err
		}
		if out.Scope.ProjectDomainName, err = domainName(project, out.Credentials.DomainName); err != nil {
			return out, err
		}
	}

	if out.TenantName, _, err = args.str("tenantName"); err != nil {
		return out, err
	}
	if out.Region, _, err = args.str("region"); err != nil {
		return out, err
	}

	if out.AuthURL, err = args.requireStr("url"); err != nil {
		return out, err
	}
	if err := checkAuthURL(out.AuthURL); err != nil {
		return out, args.fail(ErrInvalidValue, "url", "%v", err)
	}

	serviceName, ok, err := args.str("serviceName")
	if err != nil {
		return out, err
	}
	if !ok {
		serviceName = defaultServiceName
	}
	out.ServiceName = serviceName

	return out, nil
}

// parseBackend reads "backend", falling back to the PHP class name under
// "class" (OC\Files\ObjectStore\Swift -> swift).
func parseBackend(s section) (Backend, error) {
	key := "backend"
	raw, ok, err := s.str(key)
	if err != nil {
		return "", err
	}
	if !ok {
		key = "class"
		if raw, ok, err = s.str(key); err != nil {
			return "", err
		}
		if !ok {
			return "", s.fail(ErrMissingField, "backend", "set backend or class")
		}
		if idx := strings.LastIndex(raw, `\`); idx >= 0 {
			raw = raw[idx+1:]
		}
	}

	backend := Backend(strings.ToLower(raw))
	if _, known := knownBackends[backend]; !known {
		return "", s.fail(ErrUnknownBackend, key, "%q is not supported", raw)
	}
	return backend, nil
}

func domainName(s section, fallback string) (string, error) {
	domain, ok, err := s.child("domain")
	if err != nil || !ok {
		return fallback, err
	}
	name, ok, err := domain.str("name")
	if err != nil || !ok {
		return fallback, err
	}
	return name, nil
}

func checkAuthURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https; got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
