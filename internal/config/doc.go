// Package config loads starmatch settings and builds the process logger.
//
// Sources, lowest precedence first:
//
//  1. Default()
//  2. a YAML file (unknown keys are errors)
//  3. STARMATCH_* environment variables
//  4. command-line flags, applied by the cli package
package config
