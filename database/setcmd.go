package database

import (
	"strconv"

	"redisGo/datastruct/set"
	"redisGo/interface/database"
	"redisGo/interface/redis"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

// getAsSet 按集合类型取出key的值，类型不符时返回错误
func (db *DB) getAsSet(key string) (*set.Set, protocol.ErrorReply) {
	entity, exists := db.GetEntity(key)
	if !exists {
		return nil, nil
	}
	s, ok := entity.Data.(*set.Set)
	if !ok {
		return nil, &protocol.WrongTypeErrReply{}
	}
	return s, nil
}

func (db *DB) getOrInitSet(key string) (s *set.Set, isNew bool, errReply protocol.ErrorReply) {
	s, errReply = db.getAsSet(key)
	if errReply != nil {
		return nil, false, errReply
	}
	isNew = false
	if s == nil {
		s = set.Make()
		db.PutEntity(key, &database.DataEntity{
			Data: s,
		})
		isNew = true
	}
	return s, isNew, nil
}

// execSAdd adds members into set
func execSAdd(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	members := args[1:]

	s, _, errReply := db.getOrInitSet(key)
	if errReply != nil {
		return errReply
	}
	counter := 0
	for _, member := range members {
		counter += s.Add(string(member))
	}
	db.addAof(utils.ToCmdLine3("sadd", args...))
	return protocol.MakeIntReply(int64(counter))
}

// execSIsMember checks if the given value is member of set
func execSIsMember(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	member := string(args[1])

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeIntReply(0)
	}

	has := s.Has(member)
	if has {
		return protocol.MakeIntReply(1)
	}
	return protocol.MakeIntReply(0)
}

// execSRem removes members from set
func execSRem(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])
	members := args[1:]

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeIntReply(0)
	}
	counter := 0
	for _, member := range members {
		counter += s.Remove(string(member))
	}
	if s.Len() == 0 {
		db.Remove(key)
	}
	if counter > 0 {
		db.addAof(utils.ToCmdLine3("srem", args...))
	}
	return protocol.MakeIntReply(int64(counter))
}

func undoSetChange(db *DB, args [][]byte) []CmdLine {
	key := string(args[0])
	memberArgs := args[1:]
	members := make([]string, len(memberArgs))
	for i, mem := range memberArgs {
		members[i] = string(mem)
	}

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return nil
	}
	if s == nil {
		return []CmdLine{
			utils.ToCmdLine("DEL", key),
		}
	}
	var undoCmdLines [][][]byte
	for _, member := range members {
		if s.Has(member) {
			undoCmdLines = append(undoCmdLines,
				utils.ToCmdLine("SADD", key, member),
			)
		} else {
			undoCmdLines = append(undoCmdLines,
				utils.ToCmdLine("SREM", key, member),
			)
		}
	}
	return undoCmdLines
}

// execSPop removes one or more random members from set
func execSPop(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeNullBulkReply()
	}

	count := 1
	if len(args) == 2 {
		count64, err := strconv.ParseInt(string(args[1]), 10, 64)
		if err != nil || count64 <= 0 {
			return protocol.MakeErrReply("ERR value is out of range, must be positive")
		}
		count = int(count64)
	}
	if count > s.Len() {
		count = s.Len()
	}

	members := s.RandomDistinctMembers(count)
	result := make([][]byte, len(members))
	for i, v := range members {
		s.Remove(v)
		result[i] = []byte(v)
	}
	if s.Len() == 0 {
		db.Remove(key)
	}

	if count > 0 {
		db.addAof(utils.ToCmdLine2("srem", append([]string{key}, members...)...))
	}
	if len(args) == 1 {
		return protocol.MakeBulkReply(result[0])
	}
	return protocol.MakeMultiBulkReply(result)
}

// execSCard gets the number of members in a set
func execSCard(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(s.Len()))
}

// execSMembers gets all members in a set
func execSMembers(db *DB, args [][]byte) redis.Reply {
	key := string(args[0])

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}

	arr := make([][]byte, s.Len())
	i := 0
	s.ForEach(func(member string) bool {
		arr[i] = []byte(member)
		i++
		return true
	})
	return protocol.MakeMultiBulkReply(arr[:i])
}

func setOfKeys(db *DB, keys [][]byte) ([]*set.Set, protocol.ErrorReply) {
	sets := make([]*set.Set, 0, len(keys))
	for _, keyBytes := range keys {
		s, errReply := db.getAsSet(string(keyBytes))
		if errReply != nil {
			return nil, errReply
		}
		sets = append(sets, s)
	}
	return sets, nil
}

// execSInter intersect multiple sets
func execSInter(db *DB, args [][]byte) redis.Reply {
	sets, errReply := setOfKeys(db, args)
	if errReply != nil {
		return errReply
	}
	result := intersectAll(sets)
	if result == nil || result.Len() == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}
	arr := make([][]byte, 0, result.Len())
	result.ForEach(func(member string) bool {
		arr = append(arr, []byte(member))
		return true
	})
	return protocol.MakeMultiBulkReply(arr)
}

func intersectAll(sets []*set.Set) *set.Set {
	var result *set.Set
	for _, s := range sets {
		if s == nil {
			// 有一个key不存在则交集为空
			return set.Make()
		}
		if result == nil {
			result = set.Make(s.ToSlice()...)
		} else {
			result = result.Intersect(s)
		}
	}
	return result
}

func unionAll(sets []*set.Set) *set.Set {
	result := set.Make()
	for _, s := range sets {
		if s == nil {
			continue
		}
		result = result.Union(s)
	}
	return result
}

func diffAll(sets []*set.Set) *set.Set {
	var result *set.Set
	for i, s := range sets {
		if i == 0 {
			if s == nil {
				return set.Make()
			}
			result = set.Make(s.ToSlice()...)
			continue
		}
		if s != nil {
			result = result.Diff(s)
		}
	}
	return result
}

func prepareSetCalculateStore(args [][]byte) ([]string, []string) {
	dest := string(args[0])
	keys := make([]string, len(args)-1)
	keyArgs := args[1:]
	for i, arg := range keyArgs {
		keys[i] = string(arg)
	}
	return []string{dest}, keys
}

func storeSetResult(db *DB, dest string, result *set.Set, cmdName string, args [][]byte) redis.Reply {
	if result.Len() == 0 {
		db.Remove(dest)
		db.addAof(utils.ToCmdLine("DEL", dest))
		return protocol.MakeIntReply(0)
	}
	db.PutEntity(dest, &database.DataEntity{
		Data: result,
	})
	db.addAof(utils.ToCmdLine3(cmdName, args...))
	return protocol.MakeIntReply(int64(result.Len()))
}

// execSInterStore intersects multiple sets and store the result in a key
func execSInterStore(db *DB, args [][]byte) redis.Reply {
	dest := string(args[0])
	sets, errReply := setOfKeys(db, args[1:])
	if errReply != nil {
		return errReply
	}
	return storeSetResult(db, dest, intersectAll(sets), "sinterstore", args)
}

// execSUnion adds multiple sets
func execSUnion(db *DB, args [][]byte) redis.Reply {
	sets, errReply := setOfKeys(db, args)
	if errReply != nil {
		return errReply
	}
	result := unionAll(sets)
	if result.Len() == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}
	arr := make([][]byte, 0, result.Len())
	result.ForEach(func(member string) bool {
		arr = append(arr, []byte(member))
		return true
	})
	return protocol.MakeMultiBulkReply(arr)
}

// execSUnionStore adds multiple sets and store the result in a key
func execSUnionStore(db *DB, args [][]byte) redis.Reply {
	dest := string(args[0])
	sets, errReply := setOfKeys(db, args[1:])
	if errReply != nil {
		return errReply
	}
	return storeSetResult(db, dest, unionAll(sets), "sunionstore", args)
}

// execSDiff subtracts multiple sets
func execSDiff(db *DB, args [][]byte) redis.Reply {
	sets, errReply := setOfKeys(db, args)
	if errReply != nil {
		return errReply
	}
	result := diffAll(sets)
	if result == nil || result.Len() == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}
	arr := make([][]byte, 0, result.Len())
	result.ForEach(func(member string) bool {
		arr = append(arr, []byte(member))
		return true
	})
	return protocol.MakeMultiBulkReply(arr)
}

// execSDiffStore subtracts multiple sets and store the result in a key
func execSDiffStore(db *DB, args [][]byte) redis.Reply {
	dest := string(args[0])
	sets, errReply := setOfKeys(db, args[1:])
	if errReply != nil {
		return errReply
	}
	result := diffAll(sets)
	if result == nil {
		result = set.Make()
	}
	return storeSetResult(db, dest, result, "sdiffstore", args)
}

// execSRandMember gets random members from set
func execSRandMember(db *DB, args [][]byte) redis.Reply {
	if len(args) != 1 && len(args) != 2 {
		return protocol.MakeErrReply("ERR wrong number of arguments for 'srandmember' command")
	}
	key := string(args[0])

	s, errReply := db.getAsSet(key)
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeNullBulkReply()
	}
	if len(args) == 1 {
		members := s.RandomMembers(1)
		return protocol.MakeBulkReply([]byte(members[0]))
	}
	count64, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return protocol.MakeErrReply("ERR value is not an integer or out of range")
	}
	count := int(count64)
	if count > 0 {
		members := s.RandomDistinctMembers(count)
		result := make([][]byte, len(members))
		for i, v := range members {
			result[i] = []byte(v)
		}
		return protocol.MakeMultiBulkReply(result)
	} else if count < 0 {
		members := s.RandomMembers(-count)
		result := make([][]byte, len(members))
		for i, v := range members {
			result[i] = []byte(v)
		}
		return protocol.MakeMultiBulkReply(result)
	}
	return protocol.MakeEmptyMultiBulkReply()
}

func init() {
	RegisterCommand("SAdd", execSAdd, writeFirstKey, undoSetChange, -3, flagWrite)
	RegisterCommand("SIsMember", execSIsMember, readFirstKey, nil, 3, flagReadOnly)
	RegisterCommand("SRem", execSRem, writeFirstKey, undoSetChange, -3, flagWrite)
	RegisterCommand("SPop", execSPop, writeFirstKey, rollbackFirstKey, -2, flagWrite)
	RegisterCommand("SCard", execSCard, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("SMembers", execSMembers, readFirstKey, nil, 2, flagReadOnly)
	RegisterCommand("SInter", execSInter, readAllKeys, nil, -2, flagReadOnly)
	RegisterCommand("SInterStore", execSInterStore, prepareSetCalculateStore, rollbackFirstKey, -3, flagWrite)
	RegisterCommand("SUnion", execSUnion, readAllKeys, nil, -2, flagReadOnly)
	RegisterCommand("SUnionStore", execSUnionStore, prepareSetCalculateStore, rollbackFirstKey, -3, flagWrite)
	RegisterCommand("SDiff", execSDiff, readAllKeys, nil, -2, flagReadOnly)
	RegisterCommand("SDiffStore", execSDiffStore, prepareSetCalculateStore, rollbackFirstKey, -3, flagWrite)
	RegisterCommand("SRandMember", execSRandMember, readFirstKey, nil, -2, flagReadOnly)
}
