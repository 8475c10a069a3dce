package config

import "slices"

// ConfigDiff describes what changed between two configs, split by whether the
// change can be applied to the running server or requires a restart.
type ConfigDiff struct {
	// RoutingChanged is true when any routing parameter changed. Routing
	// parameters are hot-reloadable: the server swaps them into the router
	// without touching in-flight requests.
	RoutingChanged bool

	// LogLevelChanged is true when server.log_level changed. Also
	// hot-reloadable.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LibraryRootChanged is true when library.root changed. The library can
	// re-point and re-index at runtime, so this is hot-reloadable too.
	LibraryRootChanged bool
	NewLibraryRoot     string

	// RestartRequired lists dotted field paths that changed but cannot be
	// applied at runtime (listen address, backend wiring, library store).
	RestartRequired []string
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.RoutingChanged || d.LogLevelChanged || d.LibraryRootChanged ||
		len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !routingEqual(&old.Routing, &new.Routing) {
		d.RoutingChanged = true
	}

	if old.Library.Root != new.Library.Root {
		d.LibraryRootChanged = true
		d.NewLibraryRoot = new.Library.Root
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if !backendEntryEqual(&old.Backends.Local, &new.Backends.Local) {
		d.RestartRequired = append(d.RestartRequired, "backends.local")
	}
	if !backendEntryEqual(&old.Backends.Cloud, &new.Backends.Cloud) {
		d.RestartRequired = append(d.RestartRequired, "backends.cloud")
	}
	if !libraryEqual(&old.Library, &new.Library) {
		d.RestartRequired = append(d.RestartRequired, "library")
	}

	return d
}

// routingEqual compares every routing parameter.
func routingEqual(a, b *RoutingConfig) bool {
	return a.LengthThreshold == b.LengthThreshold &&
		slices.Equal(a.CompoundMarkers, b.CompoundMarkers) &&
		a.FanoutThreshold == b.FanoutThreshold &&
		slices.Equal(a.CognitionKeywords, b.CognitionKeywords) &&
		slices.Equal(a.ActionKeywords, b.ActionKeywords) &&
		slices.Equal(a.ConfidenceTiers, b.ConfidenceTiers) &&
		a.DefaultThreshold == b.DefaultThreshold &&
		a.Leniency == b.Leniency &&
		a.LocalTimeout == b.LocalTimeout &&
		a.CloudTimeout == b.CloudTimeout &&
		a.LatencyAccounting == b.LatencyAccounting
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// backendEntryEqual compares everything except Options, which is compared
// shallowly by string form of its keys and values.
func backendEntryEqual(a, b *BackendEntry) bool {
	if a.Provider != b.Provider || a.Model != b.Model ||
		a.APIKey != b.APIKey || a.BaseURL != b.BaseURL {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// libraryEqual compares the library store wiring. Root is excluded: it is
// diffed separately as a hot-reloadable field.
func libraryEqual(a, b *LibraryConfig) bool {
	return a.PostgresDSN == b.PostgresDSN &&
		a.Embeddings == b.Embeddings &&
		a.EmbeddingDimensions == b.EmbeddingDimensions &&
		a.MaxFileSize == b.MaxFileSize
}
