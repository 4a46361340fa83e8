package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"folio/internal/folio"
	"folio/internal/model"
)

const (
	usersCollection = "users"
	filesCollection = "files"

	disconnectTimeout = 10 * time.Second
)

// MongoDatabase implements folio.Store on MongoDB.
// Uniqueness is enforced by the indexes created in EnsureIndexes.
type MongoDatabase struct {
	client *mongo.Client
	users  *mongo.Collection
	files  *mongo.Collection
}

var _ folio.Store = (*MongoDatabase)(nil)

// NewMongoDatabase connects to uri and uses the named database.
func NewMongoDatabase(ctx context.Context, uri, name string) (*MongoDatabase, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	db := client.Database(name)
	return &MongoDatabase{
		client: client,
		users:  db.Collection(usersCollection),
		files:  db.Collection(filesCollection),
	}, nil
}

// EnsureIndexes creates the unique and lookup indexes. Existing indexes are left alone.
func (m *MongoDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique").
				SetPartialFilterExpression(bson.M{"username": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	_, err = m.files.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "folder_path", Value: 1},
				{Key: "filename", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("path_unique"),
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "folder_path", Value: 1},
			},
			Options: options.Index().SetName("owner_folder"),
		},
	})
	if err != nil {
		return fmt.Errorf("creating file indexes: %w", err)
	}
	return nil
}

// User operations

func (m *MongoDatabase) FindUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *MongoDatabase) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *MongoDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.findUser(ctx, bson.M{"username": username})
}

func (m *MongoDatabase) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	if err := m.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &user, nil
}

func (m *MongoDatabase) InsertUser(ctx context.Context, user *model.User) (primitive.ObjectID, error) {
	user.ID = primitive.NewObjectID()
	if _, err := m.users.InsertOne(ctx, user); err != nil {
		user.ID = primitive.NilObjectID
		return primitive.NilObjectID, mongoInsertError("user", err)
	}
	return user.ID, nil
}

func (m *MongoDatabase) DeleteUser(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (m *MongoDatabase) ListUsers(ctx context.Context) ([]*model.User, error) {
	cur, err := m.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*model.User
	for cur.Next(ctx) {
		var u model.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("decoding user: %w", err)
		}
		users = append(users, &u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Entry operations

func (m *MongoDatabase) FindEntryByID(ctx context.Context, id primitive.ObjectID) (*model.Entry, error) {
	return m.findEntry(ctx, bson.M{"_id": id})
}

func (m *MongoDatabase) FindEntryByPath(ctx context.Context, ownerID primitive.ObjectID, folderPath, filename string) (*model.Entry, error) {
	return m.findEntry(ctx, bson.M{
		"owner_id":    ownerID,
		"folder_path": folderPath,
		"filename":    filename,
	})
}

func (m *MongoDatabase) FindEntryInScope(ctx context.Context, ownerID primitive.ObjectID, scope string, subtree bool) (*model.Entry, error) {
	filter := bson.M{"owner_id": ownerID, "folder_path": scope}
	if subtree {
		prefix := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(folio.SubtreePrefix(scope))}
		filter["folder_path"] = bson.M{"$in": bson.A{scope, prefix}}
	}
	return m.findEntry(ctx, filter)
}

func (m *MongoDatabase) findEntry(ctx context.Context, filter bson.M) (*model.Entry, error) {
	var entry model.Entry
	if err := m.files.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding entry: %w", err)
	}
	return &entry, nil
}

func (m *MongoDatabase) InsertEntry(ctx context.Context, entry *model.Entry) (primitive.ObjectID, error) {
	entry.ID = primitive.NewObjectID()
	if _, err := m.files.InsertOne(ctx, entry); err != nil {
		entry.ID = primitive.NilObjectID
		return primitive.NilObjectID, mongoInsertError("entry", err)
	}
	return entry.ID, nil
}

func (m *MongoDatabase) DeleteEntry(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.files.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("deleting entry: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (m *MongoDatabase) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	q := bson.M{}
	if filter.OwnerID != nil {
		q["owner_id"] = *filter.OwnerID
	}
	if filter.FolderPath != nil {
		q["folder_path"] = *filter.FolderPath
	}

	sort := bson.D{
		{Key: "owner_id", Value: 1},
		{Key: "folder_path", Value: 1},
		{Key: "filename", Value: 1},
	}
	cur, err := m.files.Find(ctx, q, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer cur.Close(ctx)

	var entries []*model.Entry
	for cur.Next(ctx) {
		var e model.Entry
		if err := cur.Decode(&e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

func (m *MongoDatabase) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDatabase) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoInsertError(what string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("inserting %s: %w", what, folio.ErrDuplicateKey)
	}
	return fmt.Errorf("inserting %s: %w", what, err)
}
