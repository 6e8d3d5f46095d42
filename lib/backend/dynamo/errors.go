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
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/gravitational/trace"

	"github.com/rolegate/rolegate/lib/backend"
)

// convertError normalizes DynamoDB failures into the trace taxonomy shared
// by all backend implementations.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return trace.CompareFailed("%s", conditional.ErrorMessage())
	}
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return trace.LimitExceeded("%s", throughput.ErrorMessage())
	}
	var requestLimit *types.RequestLimitExceeded
	if errors.As(err, &requestLimit) {
		return trace.LimitExceeded("%s", requestLimit.ErrorMessage())
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return trace.NotFound("%s", notFound.ErrorMessage())
	}
	var internal *types.InternalServerError
	if errors.As(err, &internal) {
		return trace.ConnectionProblem(err, "%s", internal.ErrorMessage())
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= http.StatusInternalServerError {
		return trace.ConnectionProblem(err, "dynamo request failed with status %d", respErr.HTTPStatusCode())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return trace.ConnectionProblem(err, "%s", apiErr.ErrorMessage())
	}
	return trace.Wrap(err)
}

// convertConditionalError refines a conditional check failure using the
// condition that produced it: a failed NotExists means the row already
// exists, a failed ETag comparison means it was concurrently modified.
func convertConditionalError(err error, key backend.Key, cond backend.Condition) error {
	var conditional *types.ConditionalCheckFailedException
	if !errors.As(err, &conditional) {
		return convertError(err)
	}
	if cond.IsNotExists() {
		return trace.AlreadyExists("key %q already exists", key.String())
	}
	return trace.CompareFailed("key %q was concurrently modified or deleted", key.String())
}

// isRetryable reports whether a batch write failure is worth retrying
// within the same retry budget.
func isRetryable(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var requestLimit *types.RequestLimitExceeded
	if errors.As(err, &requestLimit) {
		return true
	}
	var internal *types.InternalServerError
	return errors.As(err, &internal)
}

// isTableNotFound reports whether err indicates a missing table.
func isTableNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}
