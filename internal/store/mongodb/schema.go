package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pgEdge/pgedge-storebench/internal/datagen"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// collectionSpec describes one collection with its validator and indexes.
type collectionSpec struct {
	name      string
	validator bson.M
	indexes   []mongo.IndexModel
}

func collectionSpecs() []collectionSpec {
	return []collectionSpec{
		{
			name: customersCollection,
			validator: jsonSchema(
				[]string{"firstName", "lastName", "email", "createdDate"},
				bson.M{
					"firstName":   bson.M{"bsonType": "string"},
					"lastName":    bson.M{"bsonType": "string"},
					"email":       bson.M{"bsonType": "string", "pattern": store.EmailPatternSource},
					"createdDate": bson.M{"bsonType": "date"},
				}),
			indexes: []mongo.IndexModel{{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("idx_customers_email").SetUnique(true),
			}},
		},
		{
			name: productsCollection,
			validator: jsonSchema(
				[]string{"productName", "price", "createdDate"},
				bson.M{
					"productName": bson.M{"bsonType": "string"},
					"price":       bson.M{"bsonType": "decimal", "minimum": 0},
					"createdDate": bson.M{"bsonType": "date"},
				}),
			indexes: []mongo.IndexModel{{
				Keys:    bson.D{{Key: "productName", Value: 1}},
				Options: options.Index().SetName("idx_products_name"),
			}},
		},
		{
			name: ordersCollection,
			validator: jsonSchema(
				[]string{"customerId", "orderDate", "orderDetails"},
				bson.M{
					"customerId": bson.M{"bsonType": "objectId"},
					"orderDate":  bson.M{"bsonType": "date"},
					"orderDetails": bson.M{
						"bsonType": "array",
						"minItems": 1,
						"items": bson.M{
							"bsonType": "object",
							"required": bson.A{"productId", "quantity", "unitPrice"},
							"properties": bson.M{
								"productId": bson.M{"bsonType": "objectId"},
								"quantity": bson.M{
									"bsonType": bson.A{"int", "long"},
									"minimum":  datagen.MinQuantity,
									"maximum":  datagen.MaxQuantity,
								},
								"unitPrice": bson.M{"bsonType": "decimal", "minimum": 0},
							},
						},
					},
				}),
			indexes: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "orderDate", Value: 1}},
					Options: options.Index().SetName("idx_orders_customer_date"),
				},
				{
					Keys:    bson.D{{Key: "orderDetails.productId", Value: 1}},
					Options: options.Index().SetName("idx_orders_product"),
				},
			},
		},
	}
}

func jsonSchema(required []string, properties bson.M) bson.M {
	req := make(bson.A, len(required))
	for i, r := range required {
		req[i] = r
	}
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   req,
			"properties": properties,
		},
	}
}
