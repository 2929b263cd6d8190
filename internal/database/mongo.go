package database

import (
	"context"
	"errors"
	"fmt"
	"qrattend/entity"
	"qrattend/internal/config"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionMembers    = "members"
	collectionMeetings   = "meetings"
	collectionAttendance = "attendance"
)

type MongoDB struct {
	client   *mongo.Client
	database string
}

var _ Store = (*MongoDB)(nil)

// NewMongoClient connects, pings and creates the unique indexes the service
// relies on. It returns nil, nil when MongoDB is disabled in the config.
func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := conf.Mongo.Uri
	if connectionUri == "" {
		connectionUri = fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	}
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	m := &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
	}
	if err = m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collectionMembers: {
			{Keys: bson.D{{"email", 1}}, Options: options.Index().SetUnique(true).SetName(entity.IndexMemberEmail)},
		},
		collectionMeetings: {
			{Keys: bson.D{{"code", 1}}, Options: options.Index().SetUnique(true).SetName(entity.IndexMeetingCode)},
			{Keys: bson.D{{"created_at", -1}}},
		},
		collectionAttendance: {
			{Keys: bson.D{{"member_id", 1}, {"meeting_id", 1}}, Options: options.Index().SetUnique(true).SetName(entity.IndexMemberMeeting)},
			{Keys: bson.D{{"device_ip", 1}, {"meeting_id", 1}}, Options: options.Index().SetUnique(true).SetName(entity.IndexDeviceMeeting)},
		},
	}
	for name, models := range indexes {
		if _, err := m.collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongodb create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

// writeError converts a duplicate-key failure into *entity.DuplicateError.
func (m *MongoDB) writeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &entity.DuplicateError{Index: indexFromMessage(err.Error())}
	}
	return fmt.Errorf("mongodb %s: %w", op, err)
}

// indexFromMessage extracts the index name from a server E11000 message:
// "E11000 duplicate key error collection: db.attendance index: device_meeting dup key: {...}"
func indexFromMessage(msg string) string {
	const marker = "index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func (m *MongoDB) findMany(ctx context.Context, name string, filter interface{}, result interface{}, opts ...*options.FindOptions) error {
	cursor, err := m.collection(name).Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)
	if err = cursor.All(ctx, result); err != nil {
		return fmt.Errorf("mongodb decode: %w", err)
	}
	return nil
}

func (m *MongoDB) SaveMember(ctx context.Context, member *entity.Member) error {
	_, err := m.collection(collectionMembers).InsertOne(ctx, member)
	return m.writeError("insert member", err)
}

func (m *MongoDB) GetMemberById(ctx context.Context, id string) (*entity.Member, error) {
	var member entity.Member
	err := m.collection(collectionMembers).FindOne(ctx, bson.D{{"_id", id}}).Decode(&member)
	if err != nil {
		return nil, m.findError(err)
	}
	return &member, nil
}

func (m *MongoDB) GetMemberByEmail(ctx context.Context, email string) (*entity.Member, error) {
	var member entity.Member
	err := m.collection(collectionMembers).FindOne(ctx, bson.D{{"email", entity.NormalizeEmail(email)}}).Decode(&member)
	if err != nil {
		return nil, m.findError(err)
	}
	return &member, nil
}

func (m *MongoDB) GetMembers(ctx context.Context) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	opts := options.Find().SetSort(bson.D{{"created_at", -1}})
	err := m.findMany(ctx, collectionMembers, bson.D{}, &members, opts)
	return members, err
}

func (m *MongoDB) GetMembersByIds(ctx context.Context, ids []string) ([]*entity.Member, error) {
	members := make([]*entity.Member, 0)
	if len(ids) == 0 {
		return members, nil
	}
	filter := bson.D{{"_id", bson.D{{"$in", ids}}}}
	err := m.findMany(ctx, collectionMembers, filter, &members)
	return members, err
}

// UpdateMemberProfile writes profile fields only, the session slot is left as is.
func (m *MongoDB) UpdateMemberProfile(ctx context.Context, member *entity.Member) error {
	filter := bson.D{{"_id", member.Id}}
	update := bson.D{{"$set", bson.D{
		{"name", member.Name},
		{"email", member.Email},
		{"role", member.Role},
		{"password", member.Password},
		{"updated_at", member.UpdatedAt},
	}}}
	_, err := m.collection(collectionMembers).UpdateOne(ctx, filter, update)
	return m.writeError("update member", err)
}

// SaveMemberSession replaces the session slot in one document update,
// the last login to arrive wins.
func (m *MongoDB) SaveMemberSession(ctx context.Context, id, token, ip string) error {
	filter := bson.D{{"_id", id}}
	update := bson.D{{"$set", bson.D{
		{"active_token", token},
		{"active_ip", ip},
		{"updated_at", time.Now().UTC()},
	}}}
	_, err := m.collection(collectionMembers).UpdateOne(ctx, filter, update)
	return m.writeError("save session", err)
}

func (m *MongoDB) ClearMemberSession(ctx context.Context, id string) error {
	return m.SaveMemberSession(ctx, id, "", "")
}

func (m *MongoDB) DeleteMember(ctx context.Context, id string) error {
	_, err := m.collection(collectionMembers).DeleteOne(ctx, bson.D{{"_id", id}})
	return m.writeError("delete member", err)
}

func (m *MongoDB) CountMembers(ctx context.Context) (int64, error) {
	return m.collection(collectionMembers).CountDocuments(ctx, bson.D{})
}

func (m *MongoDB) CountMembersByRole(ctx context.Context) ([]*entity.RoleCount, error) {
	pipeline := mongo.Pipeline{
		{{"$group", bson.D{{"_id", "$role"}, {"count", bson.D{{"$sum", 1}}}}}},
		{{"$sort", bson.D{{"_id", 1}}}},
	}
	cursor, err := m.collection(collectionMembers).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate: %w", err)
	}
	defer cursor.Close(ctx)
	counts := make([]*entity.RoleCount, 0)
	if err = cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return counts, nil
}

func (m *MongoDB) SaveMeeting(ctx context.Context, meeting *entity.Meeting) error {
	_, err := m.collection(collectionMeetings).InsertOne(ctx, meeting)
	return m.writeError("insert meeting", err)
}

func (m *MongoDB) GetMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	var meeting entity.Meeting
	err := m.collection(collectionMeetings).FindOne(ctx, bson.D{{"_id", id}}).Decode(&meeting)
	if err != nil {
		return nil, m.findError(err)
	}
	return &meeting, nil
}

func (m *MongoDB) GetMeetingByCode(ctx context.Context, code string) (*entity.Meeting, error) {
	var meeting entity.Meeting
	err := m.collection(collectionMeetings).FindOne(ctx, bson.D{{"code", code}}).Decode(&meeting)
	if err != nil {
		return nil, m.findError(err)
	}
	return &meeting, nil
}

// GetMeetings returns meetings newest first; limit 0 means all.
func (m *MongoDB) GetMeetings(ctx context.Context, limit int64) ([]*entity.Meeting, error) {
	meetings := make([]*entity.Meeting, 0)
	opts := options.Find().SetSort(bson.D{{"created_at", -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	err := m.findMany(ctx, collectionMeetings, bson.D{}, &meetings, opts)
	return meetings, err
}

func (m *MongoDB) GetMeetingsByIds(ctx context.Context, ids []string) ([]*entity.Meeting, error) {
	meetings := make([]*entity.Meeting, 0)
	if len(ids) == 0 {
		return meetings, nil
	}
	filter := bson.D{{"_id", bson.D{{"$in", ids}}}}
	err := m.findMany(ctx, collectionMeetings, filter, &meetings)
	return meetings, err
}

func (m *MongoDB) MeetingCodeExists(ctx context.Context, code string) (bool, error) {
	count, err := m.collection(collectionMeetings).CountDocuments(ctx, bson.D{{"code", code}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongodb count: %w", err)
	}
	return count > 0, nil
}

func (m *MongoDB) UpdateMeeting(ctx context.Context, meeting *entity.Meeting) error {
	_, err := m.collection(collectionMeetings).ReplaceOne(ctx, bson.D{{"_id", meeting.Id}}, meeting)
	return m.writeError("update meeting", err)
}

func (m *MongoDB) DeleteMeeting(ctx context.Context, id string) error {
	_, err := m.collection(collectionMeetings).DeleteOne(ctx, bson.D{{"_id", id}})
	return m.writeError("delete meeting", err)
}

func (m *MongoDB) CountMeetings(ctx context.Context, activeOnly bool) (int64, error) {
	filter := bson.D{}
	if activeOnly {
		filter = bson.D{{"is_active", true}}
	}
	return m.collection(collectionMeetings).CountDocuments(ctx, filter)
}

func (m *MongoDB) SaveAttendance(ctx context.Context, attendance *entity.Attendance) error {
	_, err := m.collection(collectionAttendance).InsertOne(ctx, attendance)
	return m.writeError("insert attendance", err)
}

func (m *MongoDB) exists(ctx context.Context, filter bson.D) (bool, error) {
	count, err := m.collection(collectionAttendance).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongodb count: %w", err)
	}
	return count > 0, nil
}

func (m *MongoDB) AttendanceExists(ctx context.Context, memberId, meetingId string) (bool, error) {
	return m.exists(ctx, bson.D{{"member_id", memberId}, {"meeting_id", meetingId}})
}

func (m *MongoDB) DeviceAttendanceExists(ctx context.Context, device, meetingId string) (bool, error) {
	return m.exists(ctx, bson.D{{"device_ip", device}, {"meeting_id", meetingId}})
}

func (m *MongoDB) GetMeetingAttendance(ctx context.Context, meetingId string) ([]*entity.Attendance, error) {
	records := make([]*entity.Attendance, 0)
	opts := options.Find().SetSort(bson.D{{"timestamp", -1}})
	err := m.findMany(ctx, collectionAttendance, bson.D{{"meeting_id", meetingId}}, &records, opts)
	return records, err
}

func (m *MongoDB) GetMemberAttendance(ctx context.Context, memberId string) ([]*entity.Attendance, error) {
	records := make([]*entity.Attendance, 0)
	opts := options.Find().SetSort(bson.D{{"timestamp", -1}})
	err := m.findMany(ctx, collectionAttendance, bson.D{{"member_id", memberId}}, &records, opts)
	return records, err
}

func (m *MongoDB) CountMeetingAttendance(ctx context.Context, meetingId string) (int64, error) {
	return m.collection(collectionAttendance).CountDocuments(ctx, bson.D{{"meeting_id", meetingId}})
}

func (m *MongoDB) CountMemberAttendance(ctx context.Context, memberId string) (int64, error) {
	return m.collection(collectionAttendance).CountDocuments(ctx, bson.D{{"member_id", memberId}})
}

func (m *MongoDB) CountAllAttendance(ctx context.Context) (int64, error) {
	return m.collection(collectionAttendance).CountDocuments(ctx, bson.D{})
}

func (m *MongoDB) CountAttendanceByMeeting(ctx context.Context) ([]*entity.MeetingCount, error) {
	pipeline := mongo.Pipeline{
		{{"$group", bson.D{{"_id", "$meeting_id"}, {"count", bson.D{{"$sum", 1}}}}}},
		{{"$sort", bson.D{{"count", -1}}}},
	}
	cursor, err := m.collection(collectionAttendance).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate: %w", err)
	}
	defer cursor.Close(ctx)
	counts := make([]*entity.MeetingCount, 0)
	if err = cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("mongodb decode: %w", err)
	}
	return counts, nil
}

func (m *MongoDB) DeleteMeetingAttendance(ctx context.Context, meetingId string) error {
	_, err := m.collection(collectionAttendance).DeleteMany(ctx, bson.D{{"meeting_id", meetingId}})
	return m.writeError("delete attendance", err)
}

func (m *MongoDB) DeleteMemberAttendance(ctx context.Context, memberId string) error {
	_, err := m.collection(collectionAttendance).DeleteMany(ctx, bson.D{{"member_id", memberId}})
	return m.writeError("delete attendance", err)
}
