package constants

// Profile is a named document shape. Each one has its own pattern extractor.
type Profile string

const (
	ProfileBatteryCatalog  Profile = "battery_catalog"
	ProfileAdditiveCatalog Profile = "additive_catalog"
	ProfileGeneric         Profile = "generic"
)

// Record defaults applied by the normalizer.
const (
	DefaultStock    = 100
	DefaultUnit     = "UN"
	DefaultCategory = "General"
)

var allProfiles = []Profile{
	ProfileBatteryCatalog,
	ProfileAdditiveCatalog,
	ProfileGeneric,
}

// ProfilesAsStringSlice lists the profile names in detection order.
func ProfilesAsStringSlice() []string {
	result := make([]string, len(allProfiles))
	for i, p := range allProfiles {
		result[i] = string(p)
	}
	return result
}
