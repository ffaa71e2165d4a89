package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/models"
)

const (
	usersCollection    = "users"
	requestsCollection = "friendRequests"
)

type userDoc struct {
	ID              string    `bson:"_id"`
	Username        string    `bson:"username"`
	FullName        string    `bson:"fullname"`
	Email           string    `bson:"email"`
	Bio             string    `bson:"bio"`
	City            string    `bson:"city"`
	ProfilePic      string    `bson:"profilePic"`
	NativeLanguage  string    `bson:"nativeLanguage"`
	DesiredLanguage string    `bson:"desiredLanguage"`
	IsEmailVerified bool      `bson:"isEmailVerified"`
	Friends         []string  `bson:"friends"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

type requestDoc struct {
	ID        string    `bson:"_id"`
	Sender    string    `bson:"sender"`
	Recipient string    `bson:"recipient"`
	Status    string    `bson:"status"`
	PairKey   string    `bson:"pairKey"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: id %q", ErrInvalidDocument, s)
	}
	return id, nil
}

func (d *userDoc) toModel() (*models.User, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	friends := make([]uuid.UUID, 0, len(d.Friends))
	for _, f := range d.Friends {
		fid, err := parseID(f)
		if err != nil {
			return nil, err
		}
		friends = append(friends, fid)
	}
	return &models.User{
		ID:              id,
		Username:        d.Username,
		FullName:        d.FullName,
		Email:           d.Email,
		Bio:             d.Bio,
		City:            d.City,
		ProfilePic:      d.ProfilePic,
		NativeLanguage:  d.NativeLanguage,
		DesiredLanguage: d.DesiredLanguage,
		IsEmailVerified: d.IsEmailVerified,
		Friends:         friends,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func (d *requestDoc) toModel() (*models.FriendRequest, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	sender, err := parseID(d.Sender)
	if err != nil {
		return nil, err
	}
	recipient, err := parseID(d.Recipient)
	if err != nil {
		return nil, err
	}
	status := models.RequestStatus(d.Status)
	if status != models.RequestStatusPending && status != models.RequestStatusAccepted {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidDocument, d.Status)
	}
	return &models.FriendRequest{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Status:      status,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// MongoStore keeps users (with an embedded friends array) and pending
// requests in two collections. Mongo offers no multi-document atomicity
// without a replica set, so accept claims the request by deleting it first
// and rolls back on failure; any one-sided friendship that survives is
// completed by ListFriends.
type MongoStore struct {
	users    *mongo.Collection
	requests *mongo.Collection
	logger   *logging.Logger
	now      func() time.Time
}

func NewMongoStore(db *mongo.Database, logger *logging.Logger) *MongoStore {
	if logger == nil {
		logger = logging.Default
	}
	return &MongoStore{
		users:    db.Collection(usersCollection),
		requests: db.Collection(requestsCollection),
		logger:   logger.WithField("component", "mongo_store"),
		now:      time.Now,
	}
}

// EnsureIndexes creates the pending-pair uniqueness index and lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetName("pending_pair_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(models.RequestStatusPending)}),
		},
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating request indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "desiredLanguage", Value: 1}, {Key: "isEmailVerified", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

// SaveUser upserts profile fields. friends is only initialised on insert.
func (s *MongoStore) SaveUser(ctx context.Context, user *models.User) error {
	now := s.now()
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": user.ID.String()},
		bson.M{
			"$set": bson.M{
				"username":        user.Username,
				"fullname":        user.FullName,
				"email":           user.Email,
				"bio":             user.Bio,
				"city":            user.City,
				"profilePic":      user.ProfilePic,
				"nativeLanguage":  user.NativeLanguage,
				"desiredLanguage": user.DesiredLanguage,
				"isEmailVerified": user.IsEmailVerified,
				"updatedAt":       now,
			},
			"$setOnInsert": bson.M{"friends": bson.A{}, "createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, id string) (*userDoc, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	doc, err := s.findUser(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return doc.toModel()
}

func (s *MongoStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	var doc requestDoc
	err := s.requests.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding friend request: %w", err)
	}
	return doc.toModel()
}

func (s *MongoStore) CreateRequest(ctx context.Context, senderID, recipientID uuid.UUID) (*models.FriendRequest, error) {
	sender, recipient := senderID.String(), recipientID.String()

	// Both sides are read: an interrupted accept can leave the edge on
	// only one of them.
	docs, err := s.findUsers(ctx, bson.M{"_id": bson.M{"$in": bson.A{sender, recipient}}})
	if err != nil {
		return nil, err
	}
	foundRecipient := false
	for _, d := range docs {
		switch d.ID {
		case recipient:
			foundRecipient = true
			if containsID(d.Friends, sender) {
				return nil, ErrAlreadyFriends
			}
		case sender:
			if containsID(d.Friends, recipient) {
				return nil, ErrAlreadyFriends
			}
		}
	}
	if !foundRecipient {
		return nil, ErrNotFound
	}

	now := s.now()
	doc := requestDoc{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Status:    string(models.RequestStatusPending),
		PairKey:   models.PairKey(senderID, recipientID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.requests.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrPendingExists
		}
		return nil, fmt.Errorf("inserting friend request: %w", err)
	}
	return doc.toModel()
}

func (s *MongoStore) addFriend(ctx context.Context, userID, friendID string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"friends": friendID}, "$set": bson.M{"updatedAt": s.now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AcceptRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	var doc requestDoc
	err := s.requests.FindOneAndDelete(ctx, bson.M{
		"_id":    requestID.String(),
		"status": string(models.RequestStatusPending),
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claiming friend request: %w", err)
	}
	req, err := doc.toModel()
	if err != nil {
		return nil, err
	}

	if err := s.addFriend(ctx, doc.Sender, doc.Recipient); err != nil {
		s.restoreRequest(ctx, doc)
		return nil, fmt.Errorf("adding friend to sender: %w", err)
	}
	if err := s.addFriend(ctx, doc.Recipient, doc.Sender); err != nil {
		_, pullErr := s.users.UpdateOne(ctx,
			bson.M{"_id": doc.Sender},
			bson.M{"$pull": bson.M{"friends": doc.Recipient}},
		)
		if pullErr != nil {
			s.logger.Error("Friendship left one-sided", logging.Fields{
				"request_id": doc.ID,
				"sender":     doc.Sender,
				"recipient":  doc.Recipient,
				"error":      pullErr.Error(),
			})
			return nil, fmt.Errorf("%w: %v", ErrInconsistent, err)
		}
		s.restoreRequest(ctx, doc)
		return nil, fmt.Errorf("adding friend to recipient: %w", err)
	}

	req.Status = models.RequestStatusAccepted
	req.UpdatedAt = s.now()
	return req, nil
}

// restoreRequest puts a claimed request back after a failed accept.
func (s *MongoStore) restoreRequest(ctx context.Context, doc requestDoc) {
	if _, err := s.requests.InsertOne(ctx, doc); err != nil {
		s.logger.Warn("Could not restore friend request after failed accept", logging.Fields{
			"request_id": doc.ID,
			"error":      err.Error(),
		})
	}
}

func (s *MongoStore) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	res, err := s.requests.DeleteOne(ctx, bson.M{
		"_id":    requestID.String(),
		"status": string(models.RequestStatusPending),
	})
	if err != nil {
		return fmt.Errorf("deleting friend request: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findUsers(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]userDoc, error) {
	cur, err := s.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("finding users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return docs, nil
}

// ListFriends returns the user's friends. A friend whose document lacks the
// back-reference is the remnant of an interrupted accept and is repaired
// here.
func (s *MongoStore) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	me, err := s.findUser(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	friends := []models.UserSummary{}
	if len(me.Friends) == 0 {
		return friends, nil
	}

	docs, err := s.findUsers(ctx,
		bson.M{"_id": bson.M{"$in": me.Friends}},
		options.Find().SetSort(bson.D{{Key: "fullname", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if !containsID(docs[i].Friends, me.ID) {
			s.logger.Warn("Repairing one-sided friendship", logging.Fields{"user_id": me.ID, "friend_id": docs[i].ID})
			if err := s.addFriend(ctx, docs[i].ID, me.ID); err != nil {
				return nil, fmt.Errorf("repairing friendship: %w", err)
			}
		}
		u, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		friends = append(friends, u.Summary())
	}
	return friends, nil
}

func (s *MongoStore) findRequests(ctx context.Context, filter bson.M) ([]models.FriendRequest, error) {
	cur, err := s.requests.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("finding friend requests: %w", err)
	}
	var docs []requestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding friend requests: %w", err)
	}
	out := make([]models.FriendRequest, 0, len(docs))
	for i := range docs {
		r, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *MongoStore) summaries(ctx context.Context, ids []string) (map[uuid.UUID]models.UserSummary, error) {
	out := make(map[uuid.UUID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	docs, err := s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for i := range docs {
		u, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out[u.ID] = u.Summary()
	}
	return out, nil
}

func (s *MongoStore) listViews(ctx context.Context, field string, userID uuid.UUID, withSender bool) ([]models.FriendRequestView, error) {
	reqs, err := s.findRequests(ctx, bson.M{field: userID.String(), "status": string(models.RequestStatusPending)})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if withSender {
			ids = append(ids, r.SenderID.String())
		} else {
			ids = append(ids, r.RecipientID.String())
		}
	}
	users, err := s.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.FriendRequestView, 0, len(reqs))
	for _, r := range reqs {
		v := models.FriendRequestView{FriendRequest: r}
		if withSender {
			if u, ok := users[r.SenderID]; ok {
				v.Sender = &u
			}
		} else if u, ok := users[r.RecipientID]; ok {
			v.Recipient = &u
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *MongoStore) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(ctx, "recipient", userID, true)
}

func (s *MongoStore) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	return s.listViews(ctx, "sender", userID, false)
}

func (s *MongoStore) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	id := userID.String()
	return s.findRequests(ctx, bson.M{
		"status": string(models.RequestStatusPending),
		"$or":    bson.A{bson.M{"sender": id}, bson.M{"recipient": id}},
	})
}

func (s *MongoStore) ListCandidates(ctx context.Context, user *models.User) ([]models.User, error) {
	exclude := bson.A{user.ID.String()}
	for _, f := range user.Friends {
		exclude = append(exclude, f.String())
	}
	docs, err := s.findUsers(ctx, bson.M{
		"_id":             bson.M{"$nin": exclude},
		"isEmailVerified": true,
		"desiredLanguage": user.DesiredLanguage,
	}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}).SetLimit(100))
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for i := range docs {
		u, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}
