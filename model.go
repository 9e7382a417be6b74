// Copyright 2017 Tamás Demeter-Haludka
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package restless

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/restlesskit/restless/util"
)

// Interface for database-backed models.
//
// Types implementing the Model interface are expected to be pointers to
// structs.
type Model interface {
	GetID() string
}

type ModelInserter interface {
	Insert(DB) error
}

type ModelUpdater interface {
	Update(DB) error
}

type ModelDeleter interface {
	Delete(DB) error
}

// Maps Go types to PostgreSQL types
var ModelDBTypeMap = map[string]string{
	"string":  "character varying",
	"int64":   "int8",
	"int32":   "int4",
	"int16":   "int2",
	"int":     "int",
	"float32": "float4",
	"float64": "float8",
	"bool":    "bool",
	"Time":    "timestamp with time zone",
}

const DefaultPageLength = 25

// ModelController maps one struct type to one database table. The schema
// and the queries are derived from the struct fields and the dbprimary,
// dbdefault and dbtype field tags.
//
// It implements every resource delegate, so it plugs into a Resource
// directly. The database connection comes from the request when the DB
// middleware is installed, from the fallback connection otherwise.
type ModelController struct {
	conn       DB
	typ        reflect.Type
	name       string
	pageLength int

	fieldList  string
	primary    []int
	field      []int
	noDefaults []int
	defaults   []int

	selectQuery string
	listQuery   string
	insertQuery string
	updateQuery string
	deleteQuery string

	AlterSQL func(string) string
}

func NewModelController(model Model, conn DB) *ModelController {
	if reflect.TypeOf(model).Kind() != reflect.Ptr {
		panic("model must be a pointer")
	}

	typ := reflect.TypeOf(model).Elem()

	mc := &ModelController{
		conn:       conn,
		typ:        typ,
		name:       strings.ToLower(typ.Name()),
		pageLength: DefaultPageLength,
	}

	mc.collectFieldIndexes()

	prefix := mc.TableAbbrev()
	fieldlist := make([]string, typ.NumField())
	for i := 0; i < len(fieldlist); i++ {
		fieldlist[i] = prefix + "." + strings.ToLower(typ.Field(i).Name)
	}
	mc.fieldList = strings.Join(fieldlist, ", ")

	mc.selectQuery = mc.createSelectQuery()
	mc.listQuery = mc.createListQuery()
	mc.insertQuery = mc.createInsertQuery()
	mc.updateQuery = mc.createUpdateQuery()
	mc.deleteQuery = mc.createDeleteQuery()

	return mc
}

// TableName returns the database table the controller maps to.
func (mc *ModelController) TableName() string {
	return mc.name
}

func (mc *ModelController) TableAbbrev() string {
	return mc.name[:1]
}

func (mc *ModelController) FieldList() string {
	return mc.fieldList
}

// SetPageLength overrides the default page length of the listing.
func (mc *ModelController) SetPageLength(length int) *ModelController {
	mc.pageLength = length
	return mc
}

func (mc *ModelController) collectFieldIndexes() {
	numField := mc.typ.NumField()
	for i := 0; i < numField; i++ {
		field := mc.typ.Field(i)
		if field.Tag.Get("dbprimary") == "true" {
			mc.primary = append(mc.primary, i)
		} else {
			mc.field = append(mc.field, i)
		}
		if field.Tag.Get("dbdefault") == "" {
			mc.noDefaults = append(mc.noDefaults, i)
		} else {
			mc.defaults = append(mc.defaults, i)
		}
	}

	if len(mc.primary) == 0 {
		mc.primary, mc.field = mc.field[:1], mc.field[1:]
	}
}

func (mc *ModelController) fieldName(i int) string {
	return strings.ToLower(mc.typ.Field(i).Name)
}

func (mc *ModelController) primaryConds(placeholder int) string {
	conds := make([]string, len(mc.primary))
	for i, f := range mc.primary {
		conds[i] = fmt.Sprintf("\"%s\" = $%d", mc.fieldName(f), placeholder)
		placeholder++
	}

	return strings.Join(conds, " AND ")
}

func (mc *ModelController) createSelectQuery() string {
	return "SELECT " + mc.fieldList + " FROM \"" + mc.name + "\" " + mc.TableAbbrev() + " WHERE " + mc.primaryConds(1)
}

func (mc *ModelController) createListQuery() string {
	order := make([]string, len(mc.primary))
	for i, f := range mc.primary {
		order[i] = "\"" + mc.fieldName(f) + "\""
	}

	return "SELECT " + mc.fieldList + " FROM \"" + mc.name + "\" " + mc.TableAbbrev() +
		" ORDER BY " + strings.Join(order, ", ") +
		" LIMIT $1 OFFSET $2"
}

func (mc *ModelController) createInsertQuery() string {
	fieldlist := make([]string, len(mc.noDefaults))
	for i, f := range mc.noDefaults {
		fieldlist[i] = "\"" + mc.fieldName(f) + "\""
	}
	placeholders := util.GeneratePlaceholders(1, uint(len(mc.noDefaults)+1))

	sql := "INSERT INTO \"" + mc.name + "\"(" + strings.Join(fieldlist, ", ") + ") VALUES(" + placeholders + ")"

	if len(mc.defaults) > 0 {
		returning := make([]string, len(mc.defaults))
		for i, f := range mc.defaults {
			returning[i] = "\"" + mc.fieldName(f) + "\""
		}
		sql += " RETURNING " + strings.Join(returning, ", ")
	}

	return sql
}

func (mc *ModelController) createUpdateQuery() string {
	fields := make([]string, len(mc.field))
	for i, f := range mc.field {
		fields[i] = fmt.Sprintf("\"%s\" = $%d", mc.fieldName(f), i+1)
	}

	return "UPDATE \"" + mc.name + "\" SET " + strings.Join(fields, ", ") + " WHERE " + mc.primaryConds(len(mc.field)+1)
}

func (mc *ModelController) createDeleteQuery() string {
	return "DELETE FROM \"" + mc.name + "\" WHERE " + mc.primaryConds(1)
}

func (mc *ModelController) getDBType(field reflect.StructField) string {
	if sqlType := field.Tag.Get("dbtype"); sqlType != "" {
		return sqlType
	}
	if sqlType := ModelDBTypeMap[field.Type.Name()]; sqlType != "" {
		return sqlType
	}
	if sqlType := ModelDBTypeMap[field.Type.Kind().String()]; sqlType != "" {
		return sqlType
	}

	return ""
}

// SchemaSQL constructs the DDL for the controller's table.
func (mc *ModelController) SchemaSQL() string {
	primaryKey := []string{}
	sql := "CREATE TABLE \"" + mc.name + "\"(\n"

	numField := mc.typ.NumField()
	for i := 0; i < numField; i++ {
		field := mc.typ.Field(i)
		fieldName := strings.ToLower(field.Name)
		sqlType := mc.getDBType(field)
		fieldDefault := ""
		if def := field.Tag.Get("dbdefault"); def != "" {
			fieldDefault = " DEFAULT " + def
		}

		if field.Tag.Get("dbprimary") == "true" {
			primaryKey = append(primaryKey, fieldName)
		}

		sql += "\t\"" + fieldName + "\" " + sqlType + " NOT NULL" + fieldDefault + ",\n"
	}

	if len(primaryKey) == 0 {
		primaryKey = append(primaryKey, strings.ToLower(mc.typ.Field(0).Name))
	}

	sql += "\n"

	for i, k := range primaryKey {
		primaryKey[i] = "\"" + k + "\""
	}
	sql += "\tCONSTRAINT " + mc.name + "_pkey PRIMARY KEY (" + strings.Join(primaryKey, ", ") + ")\n"

	sql += ");\n"

	if mc.AlterSQL != nil {
		sql = mc.AlterSQL(sql)
	}

	return sql
}

func (mc *ModelController) SchemaInstalled(db DB) bool {
	return TableExists(db, mc.name)
}

func (mc *ModelController) dbFor(r *http.Request) DB {
	if r != nil {
		if db, ok := r.Context().Value(dbConnectionKey).(DB); ok {
			return db
		}
	}

	return mc.conn
}

func (mc *ModelController) PageLength() int {
	return mc.pageLength
}

func (mc *ModelController) Empty() interface{} {
	return reflect.New(mc.typ).Interface()
}

func (mc *ModelController) List(r *http.Request, start, limit int) (interface{}, error) {
	return mc.LoadFromQuery(mc.dbFor(r), mc.listQuery, limit, start)
}

// LoadFromQuery runs a query that selects the controller's field list and
// scans the rows into model values.
func (mc *ModelController) LoadFromQuery(db DB, query string, args ...interface{}) ([]Model, error) {
	numField := mc.typ.NumField()
	models := []Model{}

	rows, err := db.Query(query, args...)
	if err != nil {
		return []Model{}, err
	}
	defer rows.Close()

	for rows.Next() {
		obj := mc.Empty()
		v := reflect.ValueOf(obj).Elem()
		pointers := make([]interface{}, numField)
		for i := 0; i < numField; i++ {
			pointers[i] = v.Field(i).Addr().Interface()
		}
		if err := rows.Scan(pointers...); err != nil {
			return []Model{}, err
		}

		models = append(models, obj.(Model))
	}

	return models, rows.Err()
}

func (mc *ModelController) Load(key string, r *http.Request) (interface{}, error) {
	keys := make([]interface{}, len(mc.primary))
	keys[0] = mc.convertKey(key)
	for i := 1; i < len(keys); i++ {
		keys[i] = GetParams(r).ByName(mc.fieldName(mc.primary[i]))
	}

	models, err := mc.LoadFromQuery(mc.dbFor(r), mc.selectQuery, keys...)
	if err != nil {
		return nil, err
	}

	if len(models) != 1 {
		return nil, nil
	}

	return models[0], nil
}

// The URL parameter is a string. Integer primary keys are common, so the
// key is converted when the column is numeric.
func (mc *ModelController) convertKey(key string) interface{} {
	switch mc.typ.Field(mc.primary[0]).Type.Kind() {
	case reflect.Int, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(key, 10, 64); err == nil {
			return n
		}
	}

	return key
}

func (mc *ModelController) Insert(obj interface{}, r *http.Request) error {
	db := mc.dbFor(r)
	if mi, ok := obj.(ModelInserter); ok {
		return mi.Insert(db)
	}

	v := reflect.ValueOf(obj).Elem()
	args := make([]interface{}, len(mc.noDefaults))
	for i, f := range mc.noDefaults {
		args[i] = v.Field(f).Interface()
	}

	if len(mc.defaults) == 0 {
		_, err := db.Exec(mc.insertQuery, args...)
		return err
	}

	returning := make([]interface{}, len(mc.defaults))
	for i, f := range mc.defaults {
		returning[i] = v.Field(f).Addr().Interface()
	}

	return db.QueryRow(mc.insertQuery, args...).Scan(returning...)
}

func (mc *ModelController) Update(obj interface{}, r *http.Request) error {
	db := mc.dbFor(r)
	if mu, ok := obj.(ModelUpdater); ok {
		return mu.Update(db)
	}

	v := reflect.ValueOf(obj).Elem()
	fields := make([]interface{}, len(mc.field))
	for i, f := range mc.field {
		fields[i] = v.Field(f).Interface()
	}
	pkey := make([]interface{}, len(mc.primary))
	for i, f := range mc.primary {
		pkey[i] = v.Field(f).Interface()
	}

	_, err := db.Exec(mc.updateQuery, append(fields, pkey...)...)
	return err
}

func (mc *ModelController) Delete(obj interface{}, r *http.Request) error {
	db := mc.dbFor(r)
	if md, ok := obj.(ModelDeleter); ok {
		return md.Delete(db)
	}

	v := reflect.ValueOf(obj).Elem()
	pkey := make([]interface{}, len(mc.primary))
	for i, f := range mc.primary {
		pkey[i] = v.Field(f).Interface()
	}

	_, err := db.Exec(mc.deleteQuery, pkey...)
	return err
}

// Resource builds a CRUD resource around the controller with the default
// endpoints and the schema install hooks.
func (mc *ModelController) Resource(serialize *Options) *Resource {
	return NewResource(mc.name).
		List(&ListEndpoint{
			List:      mc,
			Create:    mc,
			Serialize: serialize,
		}).
		Detail(&DetailEndpoint{
			Load:      mc,
			Update:    mc,
			Delete:    mc,
			Serialize: serialize,
		}).
		Schema(mc.SchemaInstalled, mc.SchemaSQL)
}
