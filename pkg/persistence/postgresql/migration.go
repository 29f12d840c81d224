package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Drafts are stored as one JSON document per row; the graph
			-- structure stays opaque to the database.
			CREATE TABLE drafts (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				document JSONB NOT NULL,
				auto_saved BOOLEAN NOT NULL DEFAULT false,
				size_bytes BIGINT NOT NULL DEFAULT 0,
				version VARCHAR(64) NOT NULL DEFAULT '0',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_drafts_updated_at ON drafts(updated_at DESC);
			CREATE INDEX idx_drafts_auto_saved ON drafts(auto_saved);
		`,
	}
}
