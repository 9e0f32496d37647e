// Package config handles loading and validating Gray Logic Sentinel configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The channel bearer token and PIN hash should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Channel.URL)
package config
