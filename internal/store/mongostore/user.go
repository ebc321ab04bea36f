package mongostore

import (
	"context"
	"time"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type userDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	Name         string        `bson:"name,omitempty"`
	Mobile       string        `bson:"mobile"`
	Password     string        `bson:"password,omitempty"`
	Role         string        `bson:"role,omitempty"`
	OTP          *string       `bson:"otp"`
	OTPExpiresAt *time.Time    `bson:"otpExpiresAt"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt,omitempty"`
}

func (d userDoc) toUser() types.User {
	user := types.User{
		ID:           d.ID.Hex(),
		Mobile:       d.Mobile,
		Name:         d.Name,
		Role:         types.Role(d.Role),
		PasswordHash: d.Password,
		OTPExpiresAt: d.OTPExpiresAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.OTP != nil {
		user.OTP = *d.OTP
	}
	return user
}

// UserRepository handles persistence for users.
type UserRepository struct {
	col *mongo.Collection
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return types.User{}, err
	}
	doc, err := findOne[userDoc](ctx, r.col, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *UserRepository) GetByMobile(ctx context.Context, mobile string) (types.User, error) {
	doc, err := findOne[userDoc](ctx, r.col, bson.D{{Key: "mobile", Value: mobile}})
	if err != nil {
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	oid, err := newObjectID(user.ID)
	if err != nil {
		return types.User{}, err
	}
	now := time.Now()
	doc := userDoc{
		ID:           oid,
		Name:         user.Name,
		Mobile:       user.Mobile,
		Password:     user.PasswordHash,
		Role:         string(user.Role),
		OTPExpiresAt: user.OTPExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.OTP != "" {
		otp := user.OTP
		doc.OTP = &otp
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return types.User{}, wrapError(err)
	}
	return doc.toUser(), nil
}

func (r *UserRepository) update(ctx context.Context, filter, set bson.D) error {
	res, err := r.col.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	return r.update(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{
		{Key: "otp", Value: code},
		{Key: "otpExpiresAt", Value: expiresAt},
		{Key: "updatedAt", Value: time.Now()},
	})
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	return r.update(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{
		{Key: "role", Value: string(role)},
		{Key: "updatedAt", Value: time.Now()},
	})
}

// ConsumeCode clears the user's code if it equals code and has not expired
// at now, storing passwordHash in the same write when it is non-empty.
func (r *UserRepository) ConsumeCode(ctx context.Context, id, code string, now time.Time, passwordHash string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	filter := bson.D{
		{Key: "_id", Value: oid},
		{Key: "otp", Value: code},
		{Key: "otpExpiresAt", Value: bson.D{{Key: "$gte", Value: now}}},
	}
	set := bson.D{
		{Key: "otp", Value: nil},
		{Key: "otpExpiresAt", Value: nil},
		{Key: "updatedAt", Value: now},
	}
	if passwordHash != "" {
		set = append(set, bson.E{Key: "password", Value: passwordHash})
	}
	return r.update(ctx, filter, set)
}
