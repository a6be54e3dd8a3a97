package builtins

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
	"slate/internal/vm"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dbManager owns every open connection a running program holds open,
// keyed by the handle string the program chose at db_open time, the way
// the teacher's database.DBManager keys connections by caller-chosen id.
type dbManager struct {
	mu    sync.RWMutex
	conns map[string]*sql.DB
}

var dbs = &dbManager{conns: map[string]*sql.DB{}}

func driverFor(kind string) (string, error) {
	switch kind {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	}
	return "", errors.Errorf("unsupported database type %q", kind)
}

// registerDB installs the db native-function table (§PART C domain stack):
// db_open, db_query, db_exec, db_close, each taking/returning slate values
// directly rather than returning Go structs back across the native
// boundary.
func registerDB(v *vm.VM) {
	define(v, "db_open", 3, nativeDBOpen)
	define(v, "db_query", -1, nativeDBQuery)
	define(v, "db_exec", -1, nativeDBExec)
	define(v, "db_close", 1, nativeDBClose)
}

func stringArg(vmm *vm.VM, args []value.Value, i int, fn string) (string, error) {
	if i >= len(args) || args[i].Kind != value.KindString {
		return "", vmm.NewError(stdlibErrors.Type, fn+"() expects a string argument")
	}
	return value.HeapOf(args[i]).(*value.StringObj).Value, nil
}

// db_open(handle, driver, dsn) -> bool
func nativeDBOpen(vmm *vm.VM, args []value.Value) (value.Value, error) {
	handle, err := stringArg(vmm, args, 0, "db_open")
	if err != nil {
		return value.Value{}, err
	}
	kind, err := stringArg(vmm, args, 1, "db_open")
	if err != nil {
		return value.Value{}, err
	}
	dsn, err := stringArg(vmm, args, 2, "db_open")
	if err != nil {
		return value.Value{}, err
	}
	driver, err := driverFor(kind)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, err.Error())
	}

	dbs.mu.Lock()
	defer dbs.mu.Unlock()
	if _, exists := dbs.conns[handle]; exists {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, "db handle already open: "+handle)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, errors.Wrap(err, "db_open").Error())
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return value.Value{}, vmm.NewError(stdlibErrors.Value, errors.Wrap(err, "db_open").Error())
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	dbs.conns[handle] = db
	return value.Bool(true), nil
}

func getConn(vmm *vm.VM, handle string) (*sql.DB, error) {
	dbs.mu.RLock()
	defer dbs.mu.RUnlock()
	db, ok := dbs.conns[handle]
	if !ok {
		return nil, vmm.NewError(stdlibErrors.Reference, "no open db handle: "+handle)
	}
	return db, nil
}

// db_query(handle, query, ...params) -> array of objects, one per row
func nativeDBQuery(vmm *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, vmm.NewError(stdlibErrors.Arity, "db_query expects at least 2 arguments")
	}
	handle, err := stringArg(vmm, args, 0, "db_query")
	if err != nil {
		return value.Value{}, err
	}
	query, err := stringArg(vmm, args, 1, "db_query")
	if err != nil {
		return value.Value{}, err
	}
	db, err := getConn(vmm, handle)
	if err != nil {
		return value.Value{}, err
	}

	params := sqlParams(args[2:])
	rows, err := db.Query(query, params...)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, errors.Wrap(err, "db_query").Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, err.Error())
	}

	var results []value.Value
	scratch := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range scratch {
		ptrs[i] = &scratch[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return value.Value{}, vmm.NewError(stdlibErrors.Value, err.Error())
		}
		row := value.NewObject()
		for i, col := range cols {
			rv := sqlToValue(scratch[i])
			row.Set(col, rv)
			value.Release(rv)
		}
		results = append(results, value.NewObjectValue(row))
	}
	arr := value.NewArray(results)
	for _, r := range results {
		value.Release(r)
	}
	return arr, nil
}

// db_exec(handle, statement, ...params) -> int (rows affected)
func nativeDBExec(vmm *vm.VM, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, vmm.NewError(stdlibErrors.Arity, "db_exec expects at least 2 arguments")
	}
	handle, err := stringArg(vmm, args, 0, "db_exec")
	if err != nil {
		return value.Value{}, err
	}
	stmt, err := stringArg(vmm, args, 1, "db_exec")
	if err != nil {
		return value.Value{}, err
	}
	db, err := getConn(vmm, handle)
	if err != nil {
		return value.Value{}, err
	}
	params := sqlParams(args[2:])
	res, err := db.Exec(stmt, params...)
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, errors.Wrap(err, "db_exec").Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, err.Error())
	}
	return value.Int32(int32(affected)), nil
}

func nativeDBClose(vmm *vm.VM, args []value.Value) (value.Value, error) {
	handle, err := stringArg(vmm, args, 0, "db_close")
	if err != nil {
		return value.Value{}, err
	}
	dbs.mu.Lock()
	defer dbs.mu.Unlock()
	db, ok := dbs.conns[handle]
	if !ok {
		return value.Value{}, vmm.NewError(stdlibErrors.Reference, "no open db handle: "+handle)
	}
	delete(dbs.conns, handle)
	if err := db.Close(); err != nil {
		return value.Value{}, vmm.NewError(stdlibErrors.Value, err.Error())
	}
	return value.Bool(true), nil
}

// sqlParams converts slate argument values to database/sql driver values.
func sqlParams(args []value.Value) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch a.Kind {
		case value.KindString:
			out[i] = value.HeapOf(a).(*value.StringObj).Value
		case value.KindInt32:
			out[i] = int64(a.AsInt32())
		case value.KindFloat32:
			out[i] = float64(a.AsFloat32())
		case value.KindFloat64:
			out[i] = a.AsFloat64()
		case value.KindBool:
			out[i] = a.AsBool()
		case value.KindNull, value.KindUndefined:
			out[i] = nil
		default:
			out[i] = value.ToDisplayString(a)
		}
	}
	return out
}

// sqlToValue converts a database/sql scan result back to a slate value.
func sqlToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Null()
	case []byte:
		return value.NewString(string(t))
	case string:
		return value.NewString(t)
	case int64:
		if int64(int32(t)) == t {
			return value.Int32(int32(t))
		}
		return value.Float64(float64(t))
	case float64:
		return value.Float64(t)
	case bool:
		return value.Bool(t)
	case time.Time:
		return value.NewString(t.Format(time.RFC3339))
	default:
		return value.NewString(fmt.Sprintf("%v", t))
	}
}
