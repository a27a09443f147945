package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"fixmycity-be/errs"
	"fixmycity-be/models"
)

const (
	issuesCollection   = "issues"
	countersCollection = "counters"
)

// MongoIssueRepository keeps issues in MongoDB. Integer ids come from a
// counter document incremented atomically on every insert.
type MongoIssueRepository struct {
	client   *mongo.Client
	issues   *mongo.Collection
	counters *mongo.Collection
	now      Clock
}

// NewMongoIssueRepository ensures indexes and returns a repository over db.
func NewMongoIssueRepository(ctx context.Context, client *mongo.Client, database string, clock Clock) (*MongoIssueRepository, error) {
	db := client.Database(database)
	r := &MongoIssueRepository{
		client:   client,
		issues:   db.Collection(issuesCollection),
		counters: db.Collection(countersCollection),
		now:      clock,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}},
	}
	if _, err := r.issues.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create issue index: %w", err)
	}

	return r, nil
}

func (r *MongoIssueRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": issuesCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate issue ID: %w", err)
	}
	return counter.Seq, nil
}

func (r *MongoIssueRepository) Insert(ctx context.Context, issue models.NewIssue) (int64, error) {
	issue, err := prepareInsert(issue)
	if err != nil {
		return 0, err
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return 0, err
	}

	doc := models.Issue{
		ID:          id,
		Category:    issue.Category,
		Description: issue.Description,
		ImagePath:   issue.ImagePath,
		Latitude:    issue.Latitude,
		Longitude:   issue.Longitude,
		Status:      models.Pending,
		CreatedAt:   r.now.now(),
		UserEmail:   issue.UserEmail,
	}

	if _, err := r.issues.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("failed to insert issue: %w", err)
	}
	return id, nil
}

func (r *MongoIssueRepository) ListAll(ctx context.Context) ([]models.Issue, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})

	cursor, err := r.issues.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}
	for i := range issues {
		issues[i].CreatedAt = issues[i].CreatedAt.UTC()
	}
	return issues, nil
}

func (r *MongoIssueRepository) GetImagePath(ctx context.Context, id int64) (string, error) {
	var doc struct {
		ImagePath *string `bson:"image_path"`
	}

	opts := options.FindOne().SetProjection(bson.M{"image_path": 1})
	err := r.issues.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("%w: issue %d", errs.ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get image path: %w", err)
	}
	if doc.ImagePath == nil || *doc.ImagePath == "" {
		return "", fmt.Errorf("%w: issue %d has no image", errs.ErrNotFound, id)
	}
	return *doc.ImagePath, nil
}

func (r *MongoIssueRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoIssueRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
