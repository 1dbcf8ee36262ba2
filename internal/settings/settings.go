package settings

import (
	"fmt"
)

// Section names in configuration sources.
const (
	CacheSection       = "redis"
	ObjectStoreSection = "objectstore"
)

const redactedValue = "******"

// Settings is the resolved configuration. It is built once and never
// mutated, so it can be shared between goroutines without locking.
// Sections are held by pointer, so compare values with Equal, not ==.
type Settings struct {
	cache       *CacheConnectionSettings
	objectStore *ObjectStoreSettings
}

// Cache returns a copy of the cache settings and whether the section was configured.
func (s Settings) Cache() (CacheConnectionSettings, bool) {
	if s.cache == nil {
		return CacheConnectionSettings{}, false
	}
	return s.cache.clone(), true
}

// ObjectStore returns a copy of the object store settings and whether the
// section was configured.
func (s Settings) ObjectStore() (ObjectStoreSettings, bool) {
	if s.objectStore == nil {
		return ObjectStoreSettings{}, false
	}
	return *s.objectStore, true
}

// Sections lists the configured section names.
func (s Settings) Sections() []string {
	sections := make([]string, 0, 2)
	if s.cache != nil {
		sections = append(sections, CacheSection)
	}
	if s.objectStore != nil {
		sections = append(sections, ObjectStoreSection)
	}
	return sections
}

// Equal reports whether both values hold the same sections with the same fields.
func (s Settings) Equal(other Settings) bool {
	switch {
	case (s.cache == nil) != (other.cache == nil):
		return false
	case (s.objectStore == nil) != (other.objectStore == nil):
		return false
	case s.cache != nil && !s.cache.Equal(*other.cache):
		return false
	case s.objectStore != nil && *s.objectStore != *other.objectStore:
		return false
	}
	return true
}

// Load resolves a single source.
func Load(source Source) (Settings, error) {
	return Resolve(source)
}

// LoadFile resolves a single YAML or JSON file.
func LoadFile(path string) (Settings, error) {
	return Resolve(File(path))
}

// Resolve reads every source, merges them in order (later sources win) and
// validates the result. The first validation failure is returned as a
// *ConfigError; unreadable sources are returned as a *SourceError.
func Resolve(sources ...Source) (Settings, error) {
	merged := map[string]any{}
	for _, source := range sources {
		values, err := source.Read()
		if err != nil {
			return Settings{}, &SourceError{Source: source.Name(), Err: err}
		}
		merge(merged, values)
	}
	return build(section{values: merged})
}

func build(root section) (Settings, error) {
	var out Settings

	cacheSection, ok, err := root.child(CacheSection)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		cache, err := parseCache(cacheSection)
		if err != nil {
			return Settings{}, err
		}
		out.cache = &cache
	}

	storeSection, ok, err := root.child(ObjectStoreSection)
	if err != nil {
		return Settings{}, err
	}
	if ok {
		store, err := parseObjectStore(storeSection)
		if err != nil {
			return Settings{}, err
		}
		out.objectStore = &store
	}

	if out.cache == nil && out.objectStore == nil {
		return Settings{}, &ConfigError{
			Kind:    ErrMissingField,
			Key:     CacheSection,
			Path:    CacheSection,
			Message: fmt.Sprintf("expected a %s or %s section", CacheSection, ObjectStoreSection),
		}
	}

	return out, nil
}

// Redacted renders the settings in the fragment layout they are loaded from,
// with passwords masked. The result is safe to log or serve.
func (s Settings) Redacted() map[string]any {
	out := map[string]any{}
	if s.cache != nil {
		out[CacheSection] = cacheFragment(*s.cache)
	}
	if s.objectStore != nil {
		out[ObjectStoreSection] = objectStoreFragment(*s.objectStore)
	}
	return out
}

func cacheFragment(c CacheConnectionSettings) map[string]any {
	out := map[string]any{
		"host": c.Host,
		"port": c.Port,
	}
	if c.Password != "" {
		out["password"] = redactedValue
	}
	if c.DBIndex != 0 {
		out["dbindex"] = c.DBIndex
	}
	if c.Timeout > 0 {
		out["timeout"] = c.Timeout.Seconds()
	}
	if c.TLS != nil {
		tlsOut := map[string]any{
			"verify_peer_name": c.TLS.VerifyPeerName,
		}
		if c.TLS.CertFile != "" {
			tlsOut["local_cert"] = c.TLS.CertFile
		}
		if c.TLS.KeyFile != "" {
			tlsOut["local_pk"] = c.TLS.KeyFile
		}
		if c.TLS.CAFile != "" {
			tlsOut["cafile"] = c.TLS.CAFile
		}
		out["ssl_context"] = tlsOut
	}
	return out
}

func objectStoreFragment(o ObjectStoreSettings) map[string]any {
	args := map[string]any{
		"bucket":     o.Bucket,
		"autocreate": o.Autocreate,
		"user": map[string]any{
			"name":     o.Credentials.Username,
			"password": redactedValue,
			"domain":   map[string]any{"name": o.Credentials.DomainName},
		},
		"url":         o.AuthURL,
		"serviceName": o.ServiceName,
	}
	if o.Scope.ProjectName != "" {
		args["scope"] = map[string]any{
			"project": map[string]any{
				"name":   o.Scope.ProjectName,
				"domain": map[string]any{"name": o.Scope.ProjectDomainName},
			},
		}
	}
	if o.TenantName != "" {
		args["tenantName"] = o.TenantName
	}
	if o.Region != "" {
		args["region"] = o.Region
	}
	return map[string]any{
		"backend":   string(o.Backend),
		"arguments": args,
	}
}
