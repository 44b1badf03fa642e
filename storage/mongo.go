package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Manimaran10/task-manager/domain"
)

// Store is the MongoDB-backed repository for tasks, users and notifications.
type Store struct {
	client        *mongo.Client
	tasks         *mongo.Collection
	users         *mongo.Collection
	notifications *mongo.Collection
	now           func() time.Time
}

// New connects to MongoDB, ensures indexes and returns a ready Store.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(dbName)
	s := &Store{
		client:        client,
		tasks:         db.Collection("tasks"),
		users:         db.Collection("users"),
		notifications: db.Collection("notifications"),
		now:           time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "creatorId", Value: 1}}},
		{Keys: bson.D{{Key: "assigneeId", Value: 1}}},
		{Keys: bson.D{{Key: "dueDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("task indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("notification indexes: %w", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// --- tasks ---

func (s *Store) CreateTask(ctx context.Context, t domain.Task) error {
	if _, err := s.tasks.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FindTask returns the raw task document without resolved identities.
func (s *Store) FindTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

// GetTaskWithDetails returns the task with creator and assignee identities resolved.
func (s *Store) GetTaskWithDetails(ctx context.Context, id string) (domain.Task, error) {
	t, err := s.FindTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	hydrated, err := s.hydrate(ctx, []domain.Task{t})
	if err != nil {
		return domain.Task{}, err
	}
	return hydrated[0], nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error {
	set := bson.M{"updatedAt": s.now().UTC()}
	if upd.Title != nil {
		set["title"] = *upd.Title
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.DueDate != nil {
		set["dueDate"] = *upd.DueDate
	}
	if upd.Priority != nil {
		set["priority"] = *upd.Priority
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.AssigneeID != nil {
		set["assigneeId"] = *upd.AssigneeID
	}
	res, err := s.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.tasks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// FindUserTasks returns a hydrated page of tasks the user is involved in,
// together with the total match count.
func (s *Store) FindUserTasks(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
	opts = opts.Normalize()
	query := s.taskQuery(userID, filter)

	total, err := s.tasks.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	order := 1
	if opts.SortOrder == "desc" {
		order = -1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: opts.SortBy, Value: order}}).
		SetSkip(int64((opts.Page - 1) * opts.Limit)).
		SetLimit(int64(opts.Limit))

	cur, err := s.tasks.Find(ctx, query, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("find tasks: %w", err)
	}
	var page []domain.Task
	if err := cur.All(ctx, &page); err != nil {
		return nil, 0, fmt.Errorf("decode tasks: %w", err)
	}

	hydrated, err := s.hydrate(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	return hydrated, total, nil
}

func (s *Store) taskQuery(userID string, filter domain.TaskFilter) bson.M {
	var involved []bson.M
	if filter.Assigned {
		involved = append(involved, bson.M{"assigneeId": userID})
	}
	if filter.Created {
		involved = append(involved, bson.M{"creatorId": userID})
	}
	if len(involved) == 0 {
		involved = []bson.M{{"assigneeId": userID}, {"creatorId": userID}}
	}
	query := bson.M{"$or": involved}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Overdue {
		query["dueDate"] = bson.M{"$lt": s.now().UTC()}
		query["status"] = bson.M{"$ne": domain.StatusCompleted}
	}
	return query
}

// hydrate attaches creator and assignee identities to the given tasks.
func (s *Store) hydrate(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	if len(tasks) == 0 {
		return tasks, nil
	}
	ids := make(map[string]struct{}, len(tasks)*2)
	for _, t := range tasks {
		ids[t.CreatorID] = struct{}{}
		ids[t.AssigneeID] = struct{}{}
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": idList}})
	if err != nil {
		return nil, fmt.Errorf("find task users: %w", err)
	}
	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode task users: %w", err)
	}
	refs := make(map[string]*domain.UserRef, len(users))
	for _, u := range users {
		refs[u.ID] = u.Ref()
	}
	for i := range tasks {
		tasks[i].Creator = refs[tasks[i].CreatorID]
		tasks[i].Assignee = refs[tasks[i].AssigneeID]
	}
	return tasks, nil
}

// DashboardStats computes the derived counters for a user's dashboard.
func (s *Store) DashboardStats(ctx context.Context, userID string) (domain.DashboardStats, error) {
	now := s.now().UTC()
	involved := []bson.M{{"assigneeId": userID}, {"creatorId": userID}}
	notCompleted := bson.M{"$ne": domain.StatusCompleted}

	var stats domain.DashboardStats
	counts := []struct {
		dst    *int
		filter bson.M
	}{
		{&stats.AssignedTasks, bson.M{"assigneeId": userID, "status": notCompleted}},
		{&stats.CreatedTasks, bson.M{"creatorId": userID, "status": notCompleted}},
		{&stats.OverdueTasks, bson.M{"assigneeId": userID, "dueDate": bson.M{"$lt": now}, "status": notCompleted}},
		{&stats.TotalTasks, bson.M{"$or": involved}},
		{&stats.InProgressTasks, bson.M{"assigneeId": userID, "status": domain.StatusInProgress}},
		{&stats.CompletedTasks, bson.M{"$or": involved, "status": domain.StatusCompleted}},
	}
	for _, c := range counts {
		n, err := s.tasks.CountDocuments(ctx, c.filter)
		if err != nil {
			return domain.DashboardStats{}, fmt.Errorf("dashboard count: %w", err)
		}
		*c.dst = int(n)
	}
	stats.CompletionRate = domain.CompletionRate(stats.CompletedTasks, stats.TotalTasks)
	return stats, nil
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Validationf("email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// SearchUsers returns users whose name or email contains the query,
// excluding the caller. Used by assignee pickers.
func (s *Store) SearchUsers(ctx context.Context, query, excludeID string) ([]domain.User, error) {
	filter := bson.M{"_id": bson.M{"$ne": excludeID}}
	if query != "" {
		re := bson.M{"$regex": query, "$options": "i"}
		filter["$or"] = []bson.M{{"name": re}, {"email": re}}
	}
	cur, err := s.users.Find(ctx, filter, options.Find().SetLimit(20).SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	var users []domain.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// --- notifications ---

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["read"] = false
	}
	cur, err := s.notifications.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50))
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	var notes []domain.Notification
	if err := cur.All(ctx, &notes); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notes, nil
}

// MarkRead marks a notification read; the caller must own it.
func (s *Store) MarkRead(ctx context.Context, id, userID string) error {
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.notifications.UpdateMany(ctx,
		bson.M{"userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := s.notifications.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}
