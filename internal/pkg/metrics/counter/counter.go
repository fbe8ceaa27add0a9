package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lightline-app/lightline/internal/pkg/cache"
	"github.com/lightline-app/lightline/internal/pkg/database"
)

const (
	creditSpendKey  = "billing:counters:credit_spend"
	messageCountKey = "usage:counters:messages"
)

// AddCreditSpend records a pending credit deduction for a user in Redis.
// Deductions are batched into the billing_profiles table by FlushAll so a
// burst of messages does not turn into a burst of row updates.
func AddCreditSpend(userID uint, credits float64) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(userID), 10)
	return cache.GetClient().HIncrByFloat(ctx, creditSpendKey, field, credits).Err()
}

// AddMessage increments the pending message counter for a user in Redis.
func AddMessage(userID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(userID), 10)
	return cache.GetClient().HIncrBy(ctx, messageCountKey, field, 1).Err()
}

// FlushAll drains all pending counters to the database
func FlushAll() error {
	return flushCreditSpend()
}

// flushCreditSpend drains the credit-spend hash atomically and applies
// batched decrements to billing_profiles. Uses RENAME to a temporary key for
// atomic drain without losing in-flight increments.
func flushCreditSpend() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", creditSpendKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", creditSpendKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type pair struct {
		userID uint64
		spend  float64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		spend, serr := strconv.ParseFloat(v, 64)
		if serr != nil || spend == 0 {
			continue
		}
		pairs = append(pairs, pair{userID: id, spend: spend})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].userID < pairs[j].userID })

	// UPDATE billing_profiles SET credits = GREATEST(credits - CASE user_id WHEN ? THEN ? ... END, 0)
	// WHERE user_id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE billing_profiles SET credits = GREATEST(credits - CASE user_id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.userID, p.spend)
	}
	builder.WriteString(" END, 0) WHERE user_id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.userID)
	}
	builder.WriteString(")")

	db := database.GetDB()
	if err := db.Exec(builder.String(), args...).Error; err != nil {
		return err
	}
	return nil
}
