package source

import "time"

// VersionRecord is the upstream version observed for one source.
type VersionRecord struct {
	// Name is the source short name.
	Name string `yaml:"name"`
	// Version is the nearest tag of the working copy; empty when unknown.
	Version string `yaml:"version,omitempty"`
	// Error explains why Version is empty.
	Error string `yaml:"error,omitempty"`
}

// VersionReport is the set of versions the package was built from.
type VersionReport struct {
	// GeneratedAt is when the report was taken.
	GeneratedAt time.Time `yaml:"generated_at"`
	// Records are in source table order.
	Records []VersionRecord `yaml:"records"`
}

// Lookup returns the record for name.
func (r *VersionReport) Lookup(name string) (VersionRecord, bool) {
	if r == nil {
		return VersionRecord{}, false
	}

	for _, record := range r.Records {
		if record.Name == name {
			return record, true
		}
	}

	return VersionRecord{}, false
}

// VersionChange describes a source whose version differs between two reports.
type VersionChange struct {
	Name     string
	Previous string
	Current  string
}

// Changes lists sources of current whose known version differs from previous.
// Sources without a version in current are not reported.
func Changes(previous, current *VersionReport) []VersionChange {
	if current == nil {
		return nil
	}

	var changes []VersionChange

	for _, record := range current.Records {
		if record.Version == "" {
			continue
		}

		old, _ := previous.Lookup(record.Name)
		if old.Version == record.Version {
			continue
		}

		changes = append(changes, VersionChange{
			Name:     record.Name,
			Previous: old.Version,
			Current:  record.Version,
		})
	}

	return changes
}
