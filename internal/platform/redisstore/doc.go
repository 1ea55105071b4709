// Package redisstore implements task.ProgressStore on Redis. Each record
// is a JSON string keyed by region, and a set indexes the regions that
// have a record.
package redisstore
