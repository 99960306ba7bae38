// Package vector provides the Pinecone implementation of Index.
package vector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v2/pinecone"
)

// PineconeIndex implements Index on a Pinecone serverless index.
type PineconeIndex struct {
	conn *pinecone.IndexConnection
}

// PineconeConfig holds connection settings for Pinecone.
type PineconeConfig struct {
	APIKey    string
	IndexHost string
	Namespace string
}

// DialPinecone creates a client and connects to the index host.
func DialPinecone(ctx context.Context, cfg PineconeConfig) (*PineconeIndex, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	conn, err := client.Index(pinecone.NewIndexConnParams{
		Host:      cfg.IndexHost,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to pinecone index: %w", err)
	}
	return &PineconeIndex{conn: conn}, nil
}

// Query returns up to topK nearest neighbours ordered by descending similarity.
func (p *PineconeIndex) Query(ctx context.Context, query []float32, topK int, includeMetadata bool) ([]Match, error) {
	resp, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          query,
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		match := Match{ID: m.Vector.Id, Score: float64(m.Score)}
		if includeMetadata && m.Vector.Metadata != nil {
			meta, err := metadataFromStruct(m.Vector.Metadata)
			if err != nil {
				return nil, err
			}
			match.Metadata = meta
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Upsert stores or overwrites the vector for id.
func (p *PineconeIndex) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	metaStruct, err := metadataToStruct(meta)
	if err != nil {
		return err
	}
	_, err = p.conn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       id,
		Values:   vec,
		Metadata: metaStruct,
	}})
	return err
}

// Delete removes vectors by ID. Missing IDs are ignored by Pinecone.
func (p *PineconeIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return p.conn.DeleteVectorsById(ctx, ids)
}

// Close closes the index connection.
func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}

// metadataToStruct converts Metadata to *pinecone.Metadata via its JSON form.
func metadataToStruct(meta Metadata) (*pinecone.Metadata, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var s pinecone.Metadata
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return &s, nil
}

// metadataFromStruct converts *pinecone.Metadata back to Metadata.
func metadataFromStruct(s *pinecone.Metadata) (Metadata, error) {
	var meta Metadata
	data, err := json.Marshal(s)
	if err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}
