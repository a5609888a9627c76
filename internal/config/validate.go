package config

import (
	"errors"

	"github.com/lmoraga/lakeflow/internal/clean"
	"github.com/lmoraga/lakeflow/internal/merge"
)

// Validate checks the configuration for errors. Every problem found is
// reported; the pipeline refuses to start on any of them, before any
// phase runs.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Input.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ObjectStore.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.DFS.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the input configuration.
func (c *InputConfig) Validate() error {
	var errs []error

	if c.WeatherFile == "" {
		errs = append(errs, configErr("input.weather_file is required"))
	}
	if c.TrafficFile == "" {
		errs = append(errs, configErr("input.traffic_file is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the object-store configuration.
func (c *ObjectStoreConfig) Validate() error {
	var errs []error

	if c.Endpoint == "" {
		errs = append(errs, configErr("object_store.endpoint is required"))
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		errs = append(errs, configErr("object_store credentials are required (config or %s/%s)",
			EnvAccessKey, EnvSecretKey))
	}
	if c.Buckets.Raw == "" || c.Buckets.Cleaned == "" || c.Buckets.Results == "" {
		errs = append(errs, configErr("object_store.buckets must name raw, cleaned and results"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the distributed-filesystem configuration.
func (c *DFSConfig) Validate() error {
	var errs []error

	if c.Namenode == "" {
		errs = append(errs, configErr("dfs.namenode is required"))
	}
	if c.User == "" {
		errs = append(errs, configErr("dfs.user is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the pipeline policy knobs.
func (c *PipelineConfig) Validate() error {
	var errs []error

	if _, err := merge.ParseJoinPolicy(c.Join); err != nil {
		errs = append(errs, configErr("pipeline.join: %v", err))
	}
	if _, err := clean.ParseImputation(c.Imputation); err != nil {
		errs = append(errs, configErr("pipeline.imputation: %v", err))
	}
	if c.UploadWorkers <= 0 {
		errs = append(errs, configErr("pipeline.upload_workers must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the gateway tuning.
func (c *GatewayConfig) Validate() error {
	var errs []error

	if c.CallTimeout <= 0 {
		errs = append(errs, configErr("gateway.call_timeout must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, configErr("gateway.retry.max_attempts must be positive"))
	}
	if c.Retry.BackoffFactor < 1 {
		errs = append(errs, configErr("gateway.retry.backoff_factor must be >= 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
