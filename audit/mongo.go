// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection MongoSink writes to.
const MongoCollection = "audit_logs"

// MongoSink appends events to a MongoDB collection.
type MongoSink struct {
	client *mongo.Client
	events *mongo.Collection
}

// eventDocument keeps snapshots as JSON strings so they round-trip unchanged.
type eventDocument struct {
	Event  `bson:",inline"`
	Before string `bson:"before,omitempty"`
	After  string `bson:"after,omitempty"`
}

// NewMongoSink connects to uri and binds the audit collection of database dbName.
func NewMongoSink(ctx context.Context, uri, dbName string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoSink{client: client, events: client.Database(dbName).Collection(MongoCollection)}, nil
}

func (s *MongoSink) Write(ctx context.Context, ev Event) error {
	doc := eventDocument{Event: ev, Before: string(ev.Before), After: string(ev.After)}
	if _, err := s.events.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *MongoSink) List(ctx context.Context, f Filter) ([]Event, error) {
	filter := bson.M{}
	if f.ResourceType != "" {
		filter["resourceType"] = f.ResourceType
	}
	if f.ResourceID != "" {
		filter["resourceId"] = f.ResourceID
	}
	if f.ActorID != "" {
		filter["actorId"] = f.ActorID
	}

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	opts.SetLimit(int64(f.limit()))

	cursor, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer cursor.Close(ctx)

	events := []Event{}
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode audit event: %w", err)
		}
		ev := doc.Event
		if doc.Before != "" {
			ev.Before = []byte(doc.Before)
		}
		if doc.After != "" {
			ev.After = []byte(doc.After)
		}
		events = append(events, ev)
	}
	return events, cursor.Err()
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
