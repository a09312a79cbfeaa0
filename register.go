package discordrpc

// Register claims the discord-<clientID> URI scheme through the configured
// Registrar so the Discord client can launch the application.
func (c *Client) Register(clientID string) error {
	scheme := "discord-" + clientID
	if err := c.opts.registrar(scheme); err != nil {
		c.logger.Warn("protocol registration failed", "scheme", scheme, "error", err)
		return err
	}
	return nil
}

// noopRegistrar is used when no Registrar is configured.
func (c *Client) noopRegistrar(scheme string) error {
	c.logger.Warn("no protocol registrar configured, skipping", "scheme", scheme)
	return nil
}
