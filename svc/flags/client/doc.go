// Package client evaluates flags for application code that embeds the flags
// service.
//
//	c := client.New(svc, env.ID)
//
//	ctx = client.WithIdentity(ctx, identity.ID)
//	if on, _ := c.IsEnabled(ctx, "dark_mode"); on {
//		// render dark theme
//	}
//	limit, ok, err := c.Int(ctx, "upload_limit")
//
// Without an identity in the context the environment defaults are evaluated.
// Applications that keep the identity elsewhere plug in their own lookup with
// WithIdentityExtractor.
package client
