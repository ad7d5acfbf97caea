package config

const (
	// TopicIngestDocument carries uploaded documents waiting to be indexed.
	TopicIngestDocument = "ingest.document"

	// ChannelIngestWorker is the consumer channel for TopicIngestDocument.
	ChannelIngestWorker = "indexer"
)
