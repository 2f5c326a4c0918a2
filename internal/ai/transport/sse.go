package transport

import (
	"bytes"
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// lineDecoder 把任意切分的字节块还原成完整的行
// 末尾不完整的行保留到下一次 Feed
type lineDecoder struct {
	buf []byte
}

// Feed 追加一个数据块，返回其中完整的行（不含换行符）
func (d *lineDecoder) Feed(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, d.buf[:i])
		lines = append(lines, line)
		d.buf = d.buf[i+1:]
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return lines
}

// Flush 返回并清空剩余的半行
func (d *lineDecoder) Flush() []byte {
	rest := d.buf
	d.buf = nil
	return rest
}

// parsePayload 从一行 SSE 中取出 JSON 载荷
// 空行、[DONE]、event/id/retry 字段与注释行返回 false
func parsePayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}

	if bytes.HasPrefix(line, dataPrefix) {
		line = bytes.TrimSpace(line[len(dataPrefix):])
		if len(line) == 0 || bytes.Equal(line, doneMarker) {
			return nil, false
		}
		return line, true
	}

	for _, field := range []string{"event:", "id:", "retry:"} {
		if bytes.HasPrefix(line, []byte(field)) {
			return nil, false
		}
	}
	// 非标准的裸 JSON 行同样交给 JSON 解析
	return line, true
}
