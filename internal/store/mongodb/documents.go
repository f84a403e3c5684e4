package mongodb

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Collection names.
const (
	customersCollection = "customers"
	productsCollection  = "products"
	ordersCollection    = "orders"
	metadataCollection  = "storebench_metadata"
)

type customerDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	FirstName   string             `bson:"firstName"`
	LastName    string             `bson:"lastName"`
	Email       string             `bson:"email"`
	CreatedDate time.Time          `bson:"createdDate"`
}

type productDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	ProductName string               `bson:"productName"`
	Price       primitive.Decimal128 `bson:"price"`
	CreatedDate time.Time            `bson:"createdDate"`
}

// orderLineDoc is embedded in its order; lines have no collection of their own.
type orderLineDoc struct {
	ProductID primitive.ObjectID   `bson:"productId"`
	Quantity  int32                `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unitPrice"`
}

type orderDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	CustomerID   primitive.ObjectID `bson:"customerId"`
	OrderDate    time.Time          `bson:"orderDate"`
	OrderDetails []orderLineDoc     `bson:"orderDetails"`
}

// sampleDoc receives the result of a $sample stage.
type sampleDoc struct {
	ID    primitive.ObjectID   `bson:"_id"`
	Price primitive.Decimal128 `bson:"price,omitempty"`
}

// spendDoc receives one row of the benchmark pipeline.
type spendDoc struct {
	ID          primitive.ObjectID   `bson:"_id"`
	FirstName   string               `bson:"firstName"`
	LastName    string               `bson:"lastName"`
	Email       string               `bson:"email"`
	OrdersCount int64                `bson:"ordersCount"`
	TotalSpent  primitive.Decimal128 `bson:"totalSpent"`
}

// priceScale matches the NUMERIC(10,2) columns of the relational schema.
const priceScale = 2

// toDecimal128 stores money with a fixed two-digit scale, so 42.50 is not
// written as 42.5.
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(priceScale))
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert decimal128 %s: %w", v, err)
	}
	return d, nil
}

func parseID(id store.Identity) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid identity %q: %w", id, err)
	}
	return oid, nil
}

func createdDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// toDocument converts a record into the document stored for it.
func toDocument(r store.Record) (any, error) {
	switch rec := r.(type) {
	case *store.Customer:
		return customerDoc{
			ID:          primitive.NewObjectID(),
			FirstName:   rec.FirstName,
			LastName:    rec.LastName,
			Email:       rec.Email,
			CreatedDate: createdDate(rec.CreatedDate),
		}, nil

	case *store.Product:
		price, err := toDecimal128(rec.Price)
		if err != nil {
			return nil, err
		}
		return productDoc{
			ID:          primitive.NewObjectID(),
			ProductName: rec.ProductName,
			Price:       price,
			CreatedDate: createdDate(rec.CreatedDate),
		}, nil

	case *store.Order:
		customerID, err := parseID(rec.CustomerID)
		if err != nil {
			return nil, err
		}
		lines := make([]orderLineDoc, len(rec.OrderDetails))
		for i, l := range rec.OrderDetails {
			productID, err := parseID(l.ProductID)
			if err != nil {
				return nil, err
			}
			unitPrice, err := toDecimal128(l.UnitPrice)
			if err != nil {
				return nil, err
			}
			lines[i] = orderLineDoc{
				ProductID: productID,
				Quantity:  int32(l.Quantity),
				UnitPrice: unitPrice,
			}
		}
		return orderDoc{
			ID:           primitive.NewObjectID(),
			CustomerID:   customerID,
			OrderDate:    rec.OrderDate,
			OrderDetails: lines,
		}, nil
	}
	return nil, fmt.Errorf("unexpected record %T", r)
}
