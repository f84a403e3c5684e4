package mongodb

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

func TestDecimal128RoundTrip(t *testing.T) {
	for _, in := range []string{"0", "1.00", "19.99", "100.99"} {
		d := decimal.RequireFromString(in)
		v, err := toDecimal128(d)
		if err != nil {
			t.Fatalf("toDecimal128(%s) failed: %v", in, err)
		}
		got, err := fromDecimal128(v)
		if err != nil {
			t.Fatalf("fromDecimal128(%s) failed: %v", v, err)
		}
		if !got.Equal(d) {
			t.Errorf("Expected %s, got %s", d, got)
		}
	}
}

func TestDecimal128KeepsScale(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42.5", "42.50"},
		{"42.50", "42.50"},
		{"1", "1.00"},
		{"0", "0.00"},
		{"19.999", "20.00"},
	}

	for _, tt := range tests {
		v, err := toDecimal128(decimal.RequireFromString(tt.in))
		if err != nil {
			t.Fatalf("toDecimal128(%s) failed: %v", tt.in, err)
		}
		if v.String() != tt.want {
			t.Errorf("toDecimal128(%s): expected %s, got %s", tt.in, tt.want, v)
		}
	}
}

func TestToDocument(t *testing.T) {
	c := &store.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada.lovelace.1@example.com"}
	doc, err := toDocument(c)
	if err != nil {
		t.Fatalf("toDocument(customer) failed: %v", err)
	}
	cd, ok := doc.(customerDoc)
	if !ok {
		t.Fatalf("Expected customerDoc, got %T", doc)
	}
	if cd.ID.IsZero() || cd.CreatedDate.IsZero() {
		t.Error("Customer document is missing _id or createdDate")
	}

	customerID := store.Identity(cd.ID.Hex())
	productDocAny, err := toDocument(&store.Product{ProductName: "Lamp", Price: decimal.New(4250, -2)})
	if err != nil {
		t.Fatalf("toDocument(product) failed: %v", err)
	}
	productID := store.Identity(productDocAny.(productDoc).ID.Hex())

	o := &store.Order{
		CustomerID: customerID,
		OrderDate:  time.Now(),
		OrderDetails: []store.OrderLine{
			{ProductID: productID, Quantity: 3, UnitPrice: decimal.New(4250, -2)},
		},
	}
	doc, err = toDocument(o)
	if err != nil {
		t.Fatalf("toDocument(order) failed: %v", err)
	}
	od := doc.(orderDoc)
	if od.CustomerID != cd.ID {
		t.Errorf("Expected customerId %s, got %s", cd.ID.Hex(), od.CustomerID.Hex())
	}
	if len(od.OrderDetails) != 1 || od.OrderDetails[0].Quantity != 3 {
		t.Errorf("Unexpected embedded lines %+v", od.OrderDetails)
	}
	if od.OrderDetails[0].UnitPrice.String() != "42.50" {
		t.Errorf("Expected unit price 42.50, got %s", od.OrderDetails[0].UnitPrice)
	}

	o.CustomerID = "42"
	if _, err := toDocument(o); err == nil {
		t.Error("Expected error for non-ObjectID identity, got nil")
	}
}

func TestSuffixPattern(t *testing.T) {
	re := regexp.MustCompile(suffixPattern("@example.com"))

	tests := []struct {
		email string
		want  bool
	}{
		{"ada.1@example.com", true},
		{"ada.1@exampleXcom", false},
		{"ada.1@example.com.evil", false},
		{"ada.1@other.org", false},
	}
	for _, tt := range tests {
		if got := re.MatchString(tt.email); got != tt.want {
			t.Errorf("Match %q: expected %v, got %v", tt.email, tt.want, got)
		}
	}
}

func TestBenchmarkPipelineShape(t *testing.T) {
	p := benchmarkPipeline(store.BenchmarkQuery{WindowDays: 180, EmailSuffix: "@example.com", TopN: 100}, time.Now())

	var stages []string
	for _, stage := range p {
		stages = append(stages, stage[0].Key)
	}
	want := []string{"$match", "$lookup", "$unwind", "$match", "$unwind", "$lookup", "$unwind", "$group", "$project", "$sort", "$limit"}
	if len(stages) != len(want) {
		t.Fatalf("Expected %d stages, got %v", len(want), stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("Stage %d: expected %s, got %s", i, want[i], stages[i])
		}
	}
	if limit := p[len(p)-1][0].Value; limit != 100 {
		t.Errorf("Expected $limit 100, got %v", limit)
	}
}

func TestSamplePipeline(t *testing.T) {
	p := samplePipeline(store.KindProduct)
	project := p[1][0].Value.(bson.D)
	if len(project) != 2 || project[1].Key != "price" {
		t.Errorf("Expected product sample to project price, got %v", project)
	}
	if project := samplePipeline(store.KindCustomer)[1][0].Value.(bson.D); len(project) != 1 {
		t.Errorf("Expected customer sample to project only _id, got %v", project)
	}
}

func TestInsertedBefore(t *testing.T) {
	bwe := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
		{WriteError: mongo.WriteError{Index: 4, Code: 11000}},
	}}
	if n := insertedBefore(bwe, 10); n != 4 {
		t.Errorf("Expected 4, got %d", n)
	}
	if n := insertedBefore(errors.New("network"), 10); n != 0 {
		t.Errorf("Expected 0, got %d", n)
	}
}

func TestCollectionSpecs(t *testing.T) {
	specs := collectionSpecs()
	if len(specs) != 3 {
		t.Fatalf("Expected 3 collections, got %d", len(specs))
	}
	for _, spec := range specs {
		if _, ok := spec.validator["$jsonSchema"]; !ok {
			t.Errorf("Collection %s has no $jsonSchema validator", spec.name)
		}
		if len(spec.indexes) == 0 {
			t.Errorf("Collection %s has no indexes", spec.name)
		}
	}
}
