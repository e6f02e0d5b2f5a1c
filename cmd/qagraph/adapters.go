package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/qagraph/qagraph/internal/adapters"
	"github.com/qagraph/qagraph/internal/config"
)

// buildAdapterRegistry registers every adapter this deployment can
// support given its configuration: the calculator and targeted crawl
// adapters need no credentials, web search needs an API key, and
// internal retrieval is always available (an empty index is a
// legitimate, if unhelpful, retrieval outcome).
func buildAdapterRegistry(cfg *config.Config) (*adapters.Registry, error) {
	reg := adapters.NewRegistry()
	reg.Register(adapters.NewCalculatorAdapter())
	reg.Register(adapters.NewTargetedCrawlAdapter(30*time.Second, 2<<20))

	retriever := adapters.NewMemoryRetriever()
	if cfg.RetrieverIndexPath != "" {
		if err := loadRetrieverIndex(retriever, cfg.RetrieverIndexPath); err != nil {
			return nil, fmt.Errorf("retriever_index_path: %w", err)
		}
	}
	reg.Register(retriever)

	if cfg.WebSearchKey != "" {
		reg.Register(adapters.NewWebSearchAdapter(cfg.WebSearchKey, "", 15*time.Second))
	}

	return reg, nil
}

// retrieverIndexLine is one line of the JSONL index file at
// RETRIEVER_INDEX_PATH.
type retrieverIndexLine struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

func loadRetrieverIndex(retriever *adapters.MemoryRetriever, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var docs []adapters.Document
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry retrieverIndexLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("parse index line: %w", err)
		}
		docs = append(docs, adapters.Document{ID: entry.ID, Content: entry.Content, Source: entry.Source})
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	retriever.Upsert(docs...)
	return nil
}
