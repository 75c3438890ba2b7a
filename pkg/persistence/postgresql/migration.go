package postgresql

import "github.com/kaizen-works/kaizen/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{
			Version:     1,
			Description: "workflow versions",
			SQL: `
				CREATE TABLE workflow_versions (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					steps JSONB NOT NULL DEFAULT '[]',
					is_improved BOOLEAN NOT NULL DEFAULT false,
					original_id UUID,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX idx_workflow_versions_original_id ON workflow_versions(original_id);
				CREATE INDEX idx_workflow_versions_updated_at ON workflow_versions(updated_at);
			`,
		},
		{
			Version:     2,
			Description: "workflow completion",
			SQL: `
				ALTER TABLE workflow_versions
					ADD COLUMN is_completed BOOLEAN NOT NULL DEFAULT false,
					ADD COLUMN completed_at TIMESTAMP WITH TIME ZONE;
			`,
		},
	}
}
