package identity

// Variant selects the identity shape produced by Generate.
type Variant int

const (
	// VariantBasic carries only the signing key.
	VariantBasic Variant = iota
	// VariantHardware also carries a hardware id that is appended to every signed message.
	VariantHardware
)

func (v Variant) String() string {
	switch v {
	case VariantBasic:
		return "basic"
	case VariantHardware:
		return "hardware"
	default:
		return "unknown"
	}
}

// Source tells where an initialized identity came from.
type Source string

const (
	SourceLoaded    Source = "loaded"
	SourceGenerated Source = "generated"
)

// Observer receives the outcome of Initialize. Implementations must not block.
type Observer interface {
	IdentityInitialized(source Source, persisted bool)
}

// fileConfig is the YAML document stored at the identity path.
type fileConfig struct {
	SecretKey  string `yaml:"secret_key"`
	HardwareID string `yaml:"hardware_id,omitempty"`
}
