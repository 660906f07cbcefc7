package password

import (
	"errors"
	"fmt"
	"runtime"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"WARDROBE_ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"WARDROBE_ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"WARDROBE_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"WARDROBE_ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"WARDROBE_ARGON2_KEY_LEN"`
}

// Policy is applied by account flows before hashing; Hash itself never rejects a password.
type Policy struct {
	MinLength      int  `env:"WARDROBE_PASSWORD_MIN_LEN"`
	MaxLength      int  `env:"WARDROBE_PASSWORD_MAX_LEN"`
	RejectVeryWeak bool `env:"WARDROBE_PASSWORD_REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package. It is parsed
// as part of the server config on top of DefaultConfig; the tags carry no
// envDefault so unset variables keep the baseline.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline used by registration and login.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

type bound struct {
	name     string
	val      uint64
	min, max uint64
}

// Check reports every cost and policy range violation, joined.
func (c Config) Check() error {
	var errs []error

	if c.Policy.MinLength < 1 || c.Policy.MinLength > 1024 {
		errs = append(errs, fmt.Errorf("WARDROBE_PASSWORD_MIN_LEN out of range [1..1024]: %d", c.Policy.MinLength))
	}
	if c.Policy.MaxLength < 1 || c.Policy.MaxLength > 4096 {
		errs = append(errs, fmt.Errorf("WARDROBE_PASSWORD_MAX_LEN out of range [1..4096]: %d", c.Policy.MaxLength))
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		errs = append(errs, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength, c.Policy.MaxLength))
	}

	for _, b := range []bound{
		{"WARDROBE_ARGON2_MEMORY_KIB", uint64(c.Params.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"WARDROBE_ARGON2_ITERATIONS", uint64(c.Params.Iterations), 1, 20},
		{"WARDROBE_ARGON2_PARALLELISM", uint64(c.Params.Parallelism), 1, 255},
		{"WARDROBE_ARGON2_SALT_LEN", uint64(c.Params.SaltLength), 8, 64},
		{"WARDROBE_ARGON2_KEY_LEN", uint64(c.Params.KeyLength), 16, 64},
	} {
		if b.val < b.min || b.val > b.max {
			errs = append(errs, fmt.Errorf("%s out of range [%d..%d]: %d", b.name, b.min, b.max, b.val))
		}
	}

	return errors.Join(errs...)
}
