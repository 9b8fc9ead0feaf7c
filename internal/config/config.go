package config

// RunConfig wraps a validated Spec with the per-invocation settings that do
// not belong in the spec file (output paths, verbosity). It is built once in
// the command layer and passed by value conceptually: nothing mutates it
// after construction.
type RunConfig struct {
	spec       *Spec
	specDir    string
	outputPath string
	verbose    bool
}

// RunOption configures a RunConfig.
type RunOption func(*RunConfig)

// WithSpecDir records the directory the spec file was loaded from.
func WithSpecDir(dir string) RunOption {
	return func(c *RunConfig) { c.specDir = dir }
}

// WithOutputPath sets the destination for the outcome JSON file.
func WithOutputPath(path string) RunOption {
	return func(c *RunConfig) { c.outputPath = path }
}

// WithVerbose enables verbose progress output.
func WithVerbose(v bool) RunOption {
	return func(c *RunConfig) { c.verbose = v }
}

// NewRunConfig creates a RunConfig for the given spec.
func NewRunConfig(spec *Spec, opts ...RunOption) *RunConfig {
	c := &RunConfig{spec: spec}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *RunConfig) Spec() *Spec        { return c.spec }
func (c *RunConfig) SpecDir() string    { return c.specDir }
func (c *RunConfig) OutputPath() string { return c.outputPath }
func (c *RunConfig) Verbose() bool      { return c.verbose }
