package postgres

// Export internal symbols for testing.
// This file is only compiled during testing.

var (
	ExportValidateTableName = validateTableName
	ExportParseHandle       = parseHandle
	ExportFormatHandle      = formatHandle
	ExportClassify          = classify

	ExportValidate = func(queueName string, opts ...Option) error {
		o := newOptions(queueName)
		for _, opt := range opts {
			opt(o)
		}

		return o.validate()
	}

	ExportConnectionString = func(opts ...Option) string {
		o := newOptions("orders")
		for _, opt := range opts {
			opt(o)
		}

		return o.connectionString()
	}

	ExportCreateStatements = func(queueName string) []string {
		return newOptions(queueName).createStatements()
	}

	ExportDropStatements = func(queueName string) []string {
		return newOptions(queueName).dropStatements()
	}

	ExportVerifyDatabaseSchema = func(queueName string) func(map[string]*dbRow) error {
		return newOptions(queueName).verifyCurrentDatabaseVersion
	}
)

// DBRow exports the internal dbRow type for testing.
type DBRow = dbRow

// Pool exports the internal pool interface for testing.
type Pool = pool

// SetPool sets the connection pool for testing purposes.
func (c *Client) SetPool(p Pool) {
	c.conn = p
}

// HasActiveTTLCleanup returns true if the background TTL cleanup goroutine is running.
func (c *Client) HasActiveTTLCleanup() bool {
	return c.cancelTTL != nil
}
