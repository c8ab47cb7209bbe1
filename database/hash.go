package database

import (
	"strconv"

	"redisGo/datastruct/dict"
	"redisGo/interface/database"
	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

// getAsDict 按哈希类型取出key的值，类型不符时返回错误
func (db *DB) getAsDict(key string) (dict.Dict, protocol.ErrorReply) {
	entity, exists := db.GetEntity(key)
	if !exists {
		return nil, nil
	}
	d, ok := entity.Data.(dict.Dict)
	if !ok {
		return nil, &protocol.WrongTypeErrReply{}
	}
	return d, nil
}

func (db *DB) getOrInitDict(key string) (d dict.Dict, isNew bool, errReply protocol.ErrorReply) {
	d, errReply = db.getAsDict(key)
	if errReply != nil {
		return nil, false, errReply
	}
	isNew = false
	if d == nil {
		d = dict.MakeSimple()
		db.PutEntity(key, &database.DataEntity{
			Data: d,
		})
		isNew = true
	}
	return d, isNew, nil
}

// execHSet sets field in hash table
func execHSet(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	field := string(args[1])
	value := args[2]

	d, _, errReply := db.getOrInitDict(key)
	if errReply != nil {
		return errReply
	}

	result := d.Put(field, value)
	db.addAof(utils.ToCmdLine3("hset", args...))
	return protocol.MakeIntReply(int64(result))
}

func undoHSet(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	field := string(args[1])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return nil
	}
	if d == nil {
		return []CmdLine{
			utils.ToCmdLine("DEL", key),
		}
	}
	value, ok := d.Get(field)
	if !ok {
		return []CmdLine{
			utils.ToCmdLine("HDEL", key, field),
		}
	}
	return []CmdLine{
		utils.ToCmdLine3("HSET", args[0], args[1], value.([]byte)),
	}
}

// execHSetNX sets field in hash table only if field not exists
func execHSetNX(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	field := string(args[1])
	value := args[2]

	d, _, errReply := db.getOrInitDict(key)
	if errReply != nil {
		return errReply
	}

	result := d.PutIfAbsent(field, value)
	if result > 0 {
		db.addAof(utils.ToCmdLine3("hsetnx", args...))
	}
	return protocol.MakeIntReply(int64(result))
}

// execHGet gets field value of hash table
func execHGet(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	field := string(args[1])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeNullBulkReply()
	}

	raw, exists := d.Get(field)
	if !exists {
		return protocol.MakeNullBulkReply()
	}
	value, _ := raw.([]byte)
	return protocol.MakeBulkReply(value)
}

// execHExists checks if a hash field exists
func execHExists(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	field := string(args[1])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeIntReply(0)
	}

	_, exists := d.Get(field)
	if exists {
		return protocol.MakeIntReply(1)
	}
	return protocol.MakeIntReply(0)
}

// execHDel deletes a hash field
func execHDel(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	fields := make([]string, len(args)-1)
	fieldArgs := args[1:]
	for i, v := range fieldArgs {
		fields[i] = string(v)
	}

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeIntReply(0)
	}

	deleted := 0
	for _, field := range fields {
		result := d.Remove(field)
		deleted += result
	}
	if d.Len() == 0 {
		db.Remove(key)
	}
	if deleted > 0 {
		db.addAof(utils.ToCmdLine3("hdel", args...))
	}

	return protocol.MakeIntReply(int64(deleted))
}

func undoHDel(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	fields := make([]string, len(args)-1)
	fieldArgs := args[1:]
	for i, v := range fieldArgs {
		fields[i] = string(v)
	}

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return nil
	}
	if d == nil {
		return nil
	}
	undoCmdLines := make([][][]byte, 0, len(fields))
	for _, field := range fields {
		value, ok := d.Get(field)
		if ok {
			undoCmdLines = append(undoCmdLines,
				utils.ToCmdLine3("HSET", args[0], []byte(field), value.([]byte)),
			)
		}
	}
	return undoCmdLines
}

// execHLen gets number of fields in hash table
func execHLen(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(d.Len()))
}

// execHMSet sets multiple hash fields
func execHMSet(db *DB, args [][]byte) redis.Reply {
	if len(args)%2 != 1 {
		return protocol.MakeSyntaxErrReply()
	}
	key := string(args[0])
	size := (len(args) - 1) / 2
	fields := make([]string, size)
	values := make([][]byte, size)
	for i := 0; i < size; i++ {
		fields[i] = string(args[2*i+1])
		values[i] = args[2*i+2]
	}

	d, _, errReply := db.getOrInitDict(key)
	if errReply != nil {
		return errReply
	}

	for i, field := range fields {
		value := values[i]
		d.Put(field, value)
	}
	db.addAof(utils.ToCmdLine3("hmset", args...))
	return &protocol.OkReply{}
}

func undoHMSet(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	size := (len(args) - 1) / 2
	fields := make([]string, size)
	for i := 0; i < size; i++ {
		fields[i] = string(args[2*i+1])
	}

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return nil
	}
	if d == nil {
		return []CmdLine{
			utils.ToCmdLine("DEL", key),
		}
	}
	undoCmdLines := make([][][]byte, 0, size)
	for _, field := range fields {
		value, ok := d.Get(field)
		if !ok {
			undoCmdLines = append(undoCmdLines,
				utils.ToCmdLine("HDEL", key, field),
			)
		} else {
			undoCmdLines = append(undoCmdLines,
				utils.ToCmdLine3("HSET", args[0], []byte(field), value.([]byte)),
			)
		}
	}
	return undoCmdLines
}

// execHMGet gets multiple hash fields
func execHMGet(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	size := len(args) - 1
	fields := make([]string, size)
	for i := 0; i < size; i++ {
		fields[i] = string(args[i+1])
	}

	result := make([][]byte, size)
	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeMultiBulkReply(result)
	}

	for i, field := range fields {
		value, ok := d.Get(field)
		if !ok {
			result[i] = nil
		} else {
			bytes, _ := value.([]byte)
			result[i] = bytes
		}
	}
	return protocol.MakeMultiBulkReply(result)
}

// execHKeys gets all field names in hash table
func execHKeys(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}

	fields := make([][]byte, d.Len())
	i := 0
	d.ForEach(func(key string, val interface{}) bool {
		fields[i] = []byte(key)
		i++
		return true
	})
	return protocol.MakeMultiBulkReply(fields[:i])
}

// execHVals gets all field value in hash table
func execHVals(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}

	values := make([][]byte, d.Len())
	i := 0
	d.ForEach(func(key string, val interface{}) bool {
		values[i], _ = val.([]byte)
		i++
		return true
	})
	return protocol.MakeMultiBulkReply(values[:i])
}

// execHGetAll gets all key-value entries in hash table
func execHGetAll(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return errReply
	}
	if d == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}

	size := d.Len()
	result := make([][]byte, size*2)
	i := 0
	d.ForEach(func(key string, val interface{}) bool {
		result[i] = []byte(key)
		i++
		result[i], _ = val.([]byte)
		i++
		return true
	})
	return protocol.MakeMultiBulkReply(result[:i])
}

// execHIncrBy increments the integer value of a hash field by the given number
func execHIncrBy(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	field := string(args[1])
	rawDelta := string(args[2])
	delta, err := strconv.ParseInt(rawDelta, 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}

	d, _, errReply := db.getOrInitDict(key)
	if errReply != nil {
		return errReply
	}

	value, exists := d.Get(field)
	if !exists {
		d.Put(field, args[2])
		db.addAof(utils.ToCmdLine3("hincrby", args...))
		return protocol.MakeBulkReply(args[2])
	}
	val, err := strconv.ParseInt(string(value.([]byte)), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR hash value is not an integer")
	}
	val += delta
	bytes := []byte(strconv.FormatInt(val, 10))
	d.Put(field, bytes)
	db.addAof(utils.ToCmdLine3("hincrby", args...))
	return protocol.MakeBulkReply(bytes)
}

func undoHIncr(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	field := string(args[1])

	d, errReply := db.getAsDict(key)
	if errReply != nil {
		return nil
	}
	if d == nil {
		return nil
	}
	value, exists := d.Get(field)
	if !exists {
		return []CmdLine{
			utils.ToCmdLine("HDEL", key, field),
		}
	}
	return []CmdLine{
		utils.ToCmdLine3("HSET", args[0], args[1], value.([]byte)),
	}
}

func init() {
	RegisterCommand("HSet", execHSet, writeFirstKey, undoHSet, 4, flagWrite)
	RegisterCommand("HSetNX", execHSetNX, writeFirstKey, undoHSet, 4, flagWrite)
	RegisterCommand("HGet", execHGet, readFirstKey, nil, 3, flagReadOnly)
	RegisterCommand("HExists", execHExists, readFirstKey, nil, 3, flagReadOnly)
	RegisterCommand("HDel", execHDel, writeFirstKey, undoHDel, -3, flagWrite)
	RegisterCommand("HLen", execHLen, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("HMSet", execHMSet, writeFirstKey, undoHMSet, -4, flagWrite)
	RegisterCommand("HMGet", execHMGet, readFirstKey, nil, -3, flagReadOnly)
	RegisterCommand("HKeys", execHKeys, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("HVals", execHVals, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("HGetAll", execHGetAll, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("HIncrBy", execHIncrBy, writeFirstKey, undoHIncr, 4, flagWrite)
}
