package model

import "errors"

var errMissingKind = errors.New("pool event missing kind")
