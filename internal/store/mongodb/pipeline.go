package mongodb

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// benchmarkPipeline ranks customers with a matching email suffix by what
// they spent since cutoff. Lines whose product no longer exists drop out of
// the $lookup join.
func benchmarkPipeline(q store.BenchmarkQuery, cutoff time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "orderDate", Value: bson.D{{Key: "$gte", Value: cutoff}}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: customersCollection},
			{Key: "localField", Value: "customerId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "customer"},
		}}},
		{{Key: "$unwind", Value: "$customer"}},
		{{Key: "$match", Value: bson.D{{Key: "customer.email", Value: bson.D{
			{Key: "$regex", Value: suffixPattern(q.EmailSuffix)},
		}}}}},
		{{Key: "$unwind", Value: "$orderDetails"}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: productsCollection},
			{Key: "localField", Value: "orderDetails.productId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "product"},
		}}},
		{{Key: "$unwind", Value: "$product"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$customer._id"},
			{Key: "firstName", Value: bson.D{{Key: "$first", Value: "$customer.firstName"}}},
			{Key: "lastName", Value: bson.D{{Key: "$first", Value: "$customer.lastName"}}},
			{Key: "email", Value: bson.D{{Key: "$first", Value: "$customer.email"}}},
			{Key: "orders", Value: bson.D{{Key: "$addToSet", Value: "$_id"}}},
			{Key: "totalSpent", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$multiply", Value: bson.A{"$orderDetails.quantity", "$orderDetails.unitPrice"}},
			}}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "firstName", Value: 1},
			{Key: "lastName", Value: 1},
			{Key: "email", Value: 1},
			{Key: "ordersCount", Value: bson.D{{Key: "$size", Value: "$orders"}}},
			{Key: "totalSpent", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "totalSpent", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: q.TopN}},
	}
}

// suffixPattern anchors a literal suffix at the end of the string.
func suffixPattern(suffix string) string {
	return regexp.QuoteMeta(suffix) + "$"
}

func samplePipeline(kind store.EntityKind) mongo.Pipeline {
	project := bson.D{{Key: "_id", Value: 1}}
	if kind == store.KindProduct {
		project = append(project, bson.E{Key: "price", Value: 1})
	}
	return mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
		{{Key: "$project", Value: project}},
	}
}
