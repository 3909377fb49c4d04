package sandbox

import (
	"time"

	"github.com/smallnest/kernelplugins/log"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxOutputLength = 4000
	DefaultMemoryLimitMB   = 512
	DefaultInstallTimeout  = 2 * time.Minute
)

// DefaultDenylist lists the modules generated code may not import.
var DefaultDenylist = []string{
	"os", "sys", "subprocess", "shutil", "importlib", "ctypes", "socket", "requests", "urllib",
}

// networkModules are allowed despite the denylist when networking is enabled.
var networkModules = map[string]bool{"requests": true, "urllib": true}

// Config controls one Sandbox. The zero value gives the most restrictive
// behaviour with the default limits; every bool opts into a permission.
type Config struct {
	// Interpreter is the Python executable, looked up on PATH when not
	// absolute. Empty means python3, then python.
	Interpreter string

	// Timeout bounds the wall-clock time of one run.
	Timeout time.Duration

	// MaxOutputLength bounds stdout and stderr, in bytes, before the
	// truncation marker is appended. Negative disables truncation.
	MaxOutputLength int

	// Denylist names modules that may not be imported. Nil means
	// DefaultDenylist; a non-nil empty slice allows everything.
	Denylist []string

	AllowNetwork   bool
	AllowFileWrite bool

	// AllowDynamicExecution permits eval, exec and __import__.
	AllowDynamicExecution bool

	// MemoryLimitMB caps the interpreter's address space where the platform
	// supports it. Zero means DefaultMemoryLimitMB, negative disables it.
	MemoryLimitMB int

	// AutoInstall installs a missing third-party module with pip and runs
	// the code once more. Only honoured together with AllowNetwork.
	AutoInstall    bool
	InstallTimeout time.Duration

	// Env adds variables to the minimal environment of the interpreter.
	Env map[string]string

	Logger log.Logger
}

// DefaultConfig returns the restrictive defaults.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputLength == 0 {
		c.MaxOutputLength = DefaultMaxOutputLength
	}
	if c.Denylist == nil {
		c.Denylist = append([]string(nil), DefaultDenylist...)
	}
	if c.MemoryLimitMB == 0 {
		c.MemoryLimitMB = DefaultMemoryLimitMB
	}
	if c.InstallTimeout <= 0 {
		c.InstallTimeout = DefaultInstallTimeout
	}
	if c.Logger == nil {
		c.Logger = log.GetDefaultLogger()
	}
	return c
}

// denied reports whether module is blocked by the denylist.
func (c Config) denied(module string) (string, bool) {
	for _, d := range c.Denylist {
		if c.AllowNetwork && networkModules[d] {
			continue
		}
		if matchesModule(module, d) {
			return d, true
		}
	}
	return "", false
}
