package socket

import "github.com/bloomberg/ntf-core-sub027/ntcerr"

func errLimit(op string) *ntcerr.Error           { return ntcerr.New(ntcerr.Limit, op, "") }
func errInvalid(op string) *ntcerr.Error         { return ntcerr.New(ntcerr.Invalid, op, "") }
func errConnectionDead(op string) *ntcerr.Error  { return ntcerr.New(ntcerr.ConnectionDead, op, "") }
func errCancelled(op string) *ntcerr.Error       { return ntcerr.New(ntcerr.Cancelled, op, "") }
func errWouldBlockSend(op string) *ntcerr.Error  { return ntcerr.New(ntcerr.WouldBlockSend, op, "") }
func errWouldBlockRecv(op string) *ntcerr.Error  { return ntcerr.New(ntcerr.WouldBlockReceive, op, "") }
func errWouldBlockConn(op string) *ntcerr.Error  { return ntcerr.New(ntcerr.WouldBlockConnect, op, "") }
func errEOF(op string) *ntcerr.Error             { return ntcerr.New(ntcerr.EOF, op, "") }
