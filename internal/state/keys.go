package state

const (
	// Namespace is the prefix of keys written by the prairie-water modules.
	Namespace = "gwf-prairie-water"
	// DefaultNamespace is the prefix used by host-provided modules.
	DefaultNamespace = "gwf-default"

	SelectedFeature   = "selected-feature"
	LocationSelection = "locationSelection"
)

// Key joins a namespace and a name into a global key.
func Key(namespace, name string) string {
	return namespace + "." + name
}

// SelectedFeatureKey is the key a layer publishes clicked features under.
func SelectedFeatureKey() string {
	return Key(Namespace, SelectedFeature)
}

// LocationSelectionKey is the key the advanced chart reads.
func LocationSelectionKey() string {
	return Key(DefaultNamespace, LocationSelection)
}
