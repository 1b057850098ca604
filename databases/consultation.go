package databases

// go generate: mockery --name ConsultationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/medrounds/med-consult-api/models"
)

const consultationName = "chats"

// ConsultationDatabase contains the methods to use with the consultation (case
// room) database
type ConsultationDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Room, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Room, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
}

type consultationDatabase struct {
	db DatabaseHelper
}

// NewConsultationDatabase initializes a new instance of consultation database with the provided db connection
func NewConsultationDatabase(db DatabaseHelper) ConsultationDatabase {
	return &consultationDatabase{
		db: db,
	}
}

func (c *consultationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Room, error) {
	room := &models.Room{}
	err := c.db.Collection(consultationName).FindOne(ctx, filter, opts...).Decode(&room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (c *consultationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Room, error) {
	var rooms []models.Room
	cr := c.db.Collection(consultationName).Find(ctx, filter, opts...)
	err := cr.Decode(&rooms)
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *consultationDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res := c.db.Collection(consultationName).InsertOne(ctx, document, opts...)
	return res, nil
}

// UpdateOne applies an atomic update and reports the number of documents
// modified so callers can distinguish a missing or foreign-owned room
func (c *consultationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := c.db.Collection(consultationName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount(), nil
}
