package db

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// dynamicUpdateDocument creates a BSON update document from a struct, including only non-zero fields.
// It uses reflection to iterate over the struct fields and create the update document.
// The struct fields must have a bson tag to be included in the update document.
// The _id field is skipped.
func dynamicUpdateDocument(item any, alwaysUpdateTags []string) (bson.M, error) {
	val := reflect.ValueOf(item)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input must be a valid struct")
	}
	update := bson.M{}
	typ := val.Type()
	alwaysUpdateMap := make(map[string]bool, len(alwaysUpdateTags))
	for _, tag := range alwaysUpdateTags {
		alwaysUpdateMap[tag] = true
	}
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanInterface() {
			continue
		}
		tag := typ.Field(i).Tag.Get("bson")
		if tag == "" || tag == "-" || tag == "_id" {
			continue
		}
		if alwaysUpdateMap[tag] || !field.IsZero() {
			update[tag] = field.Interface()
		}
	}
	return bson.M{"$set": update}, nil
}

// paginate normalizes a page and page size and returns the number of
// documents to skip.
func paginate(page, pageSize int) (int, int, int64) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, int64((page - 1) * pageSize)
}

// totalPages returns the number of pages needed to hold count documents.
func totalPages(count int64, pageSize int) int {
	return int((count + int64(pageSize) - 1) / int64(pageSize))
}
