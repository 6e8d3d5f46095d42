/*
 * Rolegate
 * Copyright (C) 2025  Rolegate, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/rolegate/rolegate/lib/backend"
	"github.com/rolegate/rolegate/lib/utils"
)

// BatchWrite applies puts and deletes in chunks of at most the configured
// batch size, draining UnprocessedItems with jittered exponential backoff
// until the retry budget runs out.
func (d *Dynamo) BatchWrite(ctx context.Context, ops []backend.Op) error {
	for start := 0; start < len(ops); start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, len(ops))
		if err := d.writeChunk(ctx, ops[start:end]); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

func (d *Dynamo) writeChunk(ctx context.Context, ops []backend.Op) error {
	requests := make([]types.WriteRequest, 0, len(ops))
	for _, op := range ops {
		switch {
		case op.Put() != nil:
			item := op.Put()
			av, err := attributevalue.MarshalMap(record{
				EntityName:  item.Key.Entity,
				SubjectName: item.Key.Subject,
				Value:       item.Value,
				ETag:        uuid.NewString(),
			})
			if err != nil {
				return trace.Wrap(err)
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: av},
			})
		case op.Delete() != nil:
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: keyAttributes(*op.Delete())},
			})
		default:
			return trace.BadParameter("batch operation is neither put nor delete")
		}
	}

	pending := map[string][]types.WriteRequest{
		d.cfg.TableName: requests,
	}
	backoff := utils.NewBackoff(defaultRetryBase, defaultRetryMax)

	for attempt := 0; ; attempt++ {
		out, err := d.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			if !isRetryable(err) {
				return trace.Wrap(convertError(err))
			}
			// throttled wholesale, retry the same request set
		} else {
			if len(out.UnprocessedItems) == 0 || len(out.UnprocessedItems[d.cfg.TableName]) == 0 {
				return nil
			}
			pending = out.UnprocessedItems
		}

		if attempt+1 >= d.cfg.RetryBudget {
			return trace.LimitExceeded(
				"batch write against table %q still has %d unprocessed operations after %d attempts",
				d.cfg.TableName, len(pending[d.cfg.TableName]), attempt+1)
		}

		d.logger.DebugContext(ctx, "retrying unprocessed batch items",
			"remaining", len(pending[d.cfg.TableName]), "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return trace.Wrap(ctx.Err())
		case <-d.cfg.Clock.After(backoff.Next()):
		}
	}
}
