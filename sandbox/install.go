package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var (
	missingModuleRe = regexp.MustCompile(`ModuleNotFoundError: No module named '([\w.]+)'`)
	packageNameRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// packageAliases maps import names to the distribution that provides them
// where the two differ.
var packageAliases = map[string]string{
	"sklearn":  "scikit-learn",
	"cv2":      "opencv-python",
	"PIL":      "pillow",
	"bs4":      "beautifulsoup4",
	"yaml":     "pyyaml",
	"dateutil": "python-dateutil",
}

// PackageFor returns the pip distribution name for an imported module.
func PackageFor(module string) string {
	root, _, _ := strings.Cut(module, ".")
	if pkg, ok := packageAliases[root]; ok {
		return pkg
	}
	return root
}

// missingPackage extracts an installable package from a
// ModuleNotFoundError in stderr.
func (s *Sandbox) missingPackage(stderr string) (string, bool) {
	m := missingModuleRe.FindStringSubmatch(stderr)
	if m == nil {
		return "", false
	}
	if _, denied := s.cfg.denied(m[1]); denied {
		return "", false
	}
	pkg := PackageFor(m[1])
	if !packageNameRe.MatchString(pkg) {
		return "", false
	}
	return pkg, true
}

// install puts pkg into the sandbox's private library directory, which is
// added to PYTHONPATH for later runs.
func (s *Sandbox) install(ctx context.Context, interp, pkg string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.InstallTimeout)
	defer cancel()

	s.logger.Info("📦 installing missing package %s", pkg)
	cmd := exec.CommandContext(ctx, interp, "-m", "pip", "install", "--quiet", "--disable-pip-version-check",
		"--target", s.libs, pkg)
	cmd.Dir = s.workDir
	cmd.Env = s.env(s.workDir)
	ConfigureProcess(cmd)
	cmd.WaitDelay = waitDelay

	out, err := cmd.CombinedOutput()
	if err != nil {
		text, _ := Truncate(strings.TrimSpace(string(out)), s.cfg.MaxOutputLength)
		return fmt.Errorf("pip install %s: %w: %s", pkg, err, text)
	}
	return nil
}
