package amf

// wideIndices reports whether face indices of a buffer addressing
// vertexCount vertices are stored as u32.
func wideIndices(vertexCount int) bool {
	return vertexCount > SHORT_INDEX_LIMIT
}

func faceRecordSize(vertexCount int) int64 {
	if wideIndices(vertexCount) {
		return 3 * 4
	}
	return 3 * 2
}

func readFaces(c *Cursor, vertexCount, faceCount int) ([]Face, error) {
	wide := wideIndices(vertexCount)
	faces := make([]Face, faceCount)
	for i := range faces {
		for j := 0; j < 3; j++ {
			if wide {
				v, err := c.ReadU32()
				if err != nil {
					return nil, err
				}
				faces[i][j] = v
			} else {
				v, err := c.ReadU16()
				if err != nil {
					return nil, err
				}
				faces[i][j] = uint32(v)
			}
		}
	}
	return faces, nil
}

func readSubmeshes(c *Cursor, count int) ([]Submesh, error) {
	subs := make([]Submesh, count)
	for i := range subs {
		shader, err := c.ReadI16()
		if err != nil {
			return nil, err
		}
		start, err := c.ReadI32()
		if err != nil {
			return nil, err
		}
		n, err := c.ReadI32()
		if err != nil {
			return nil, err
		}
		subs[i] = Submesh{Shader: int(shader), FaceStart: int(start), FaceCount: int(n)}
	}
	return subs, nil
}
