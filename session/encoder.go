package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	grantFormatVersionCurrent = 1

	// Fixed-offset prefix read by the rotation script:
	// version(1) refreshHash(32) expiresAt(8) createdAt(8) subjectLen(1) subject.
	refreshHashOffset = 1
	maxShortField     = 255
	maxScopes         = 32
)

var errGrantTruncated = errors.New("grant blob truncated")

func Encode(g *Grant) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(grantFormatVersionCurrent)
	buf.Write(g.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, g.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, g.CreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"subject", g.Subject},
		{"name", g.Name},
		{"security stamp", g.SecurityStamp},
	} {
		if len(field.value) > maxShortField {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	if len(g.Scopes) > maxScopes {
		return nil, errors.New("too many scopes")
	}
	buf.WriteByte(byte(len(g.Scopes)))
	for _, scope := range g.Scopes {
		if len(scope) > maxShortField {
			return nil, errors.New("scope too long")
		}
		buf.WriteByte(byte(len(scope)))
		buf.WriteString(scope)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Grant, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != grantFormatVersionCurrent {
		return nil, errors.New("invalid grant version")
	}

	g := &Grant{}
	if _, err := io.ReadFull(reader, g.RefreshHash[:]); err != nil {
		return nil, errGrantTruncated
	}
	if err := binary.Read(reader, binary.BigEndian, &g.ExpiresAt); err != nil {
		return nil, errGrantTruncated
	}
	if err := binary.Read(reader, binary.BigEndian, &g.CreatedAt); err != nil {
		return nil, errGrantTruncated
	}

	if g.Subject, err = readShortString(reader); err != nil {
		return nil, err
	}
	if g.Name, err = readShortString(reader); err != nil {
		return nil, err
	}
	if g.SecurityStamp, err = readShortString(reader); err != nil {
		return nil, err
	}

	count, err := reader.ReadByte()
	if err != nil {
		return nil, errGrantTruncated
	}
	if count > maxScopes {
		return nil, errors.New("too many scopes")
	}
	g.Scopes = make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		scope, err := readShortString(reader)
		if err != nil {
			return nil, err
		}
		g.Scopes = append(g.Scopes, scope)
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in grant blob")
	}

	return g, nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", errGrantTruncated
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", errGrantTruncated
	}
	return string(raw), nil
}
