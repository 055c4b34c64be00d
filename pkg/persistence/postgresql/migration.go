package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflow_documents table
			CREATE TABLE workflow_documents (
				wid BIGINT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				content JSONB NOT NULL,
				is_public BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_documents_name ON workflow_documents(name);
			CREATE INDEX idx_workflow_documents_is_public ON workflow_documents(is_public);
		`,
	}
}
