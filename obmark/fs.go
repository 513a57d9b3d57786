package obmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultFsPageSize = 1000

// FsObjectClient stores objects as files below RootPath/<bucket>/<key>.
// Useful for running the benchmark without an object store at hand.
type FsObjectClient struct {
	cfg *FsObjectClientConfig
}

type FsObjectClientConfig struct {
	RootPath string
	PageSize int
}

func NewFsClient(obConfig *FsObjectClientConfig) *FsObjectClient {
	if obConfig.PageSize <= 0 {
		obConfig.PageSize = defaultFsPageSize
	}
	return &FsObjectClient{
		cfg: obConfig,
	}
}

func (c *FsObjectClient) bucketPath(bucket string) string {
	return filepath.Join(c.cfg.RootPath, bucket)
}

func (c *FsObjectClient) objectPath(bucket string, key string) string {
	return filepath.Join(c.bucketPath(bucket), filepath.FromSlash(key))
}

func (c *FsObjectClient) CreateBucket(_ context.Context, bucket string) error {
	return os.MkdirAll(c.bucketPath(bucket), os.ModePerm)
}

func (c *FsObjectClient) Put(ctx context.Context, bucket string, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(c.bucketPath(bucket)); err != nil {
		return fmt.Errorf("put %s: no such bucket %q: %w", key, bucket, err)
	}
	p := c.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	// write next to the target and rename, so that concurrent readers never see partial objects
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if _, err = tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (c *FsObjectClient) Get(ctx context.Context, bucket string, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.objectPath(bucket, key))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return f, nil
}

// ListObjectsPage lists keys in lexical order. The continuation token is the
// last key of the previous page.
func (c *FsObjectClient) ListObjectsPage(ctx context.Context, bucket string, prefix string, token string) (ListPage, error) {
	if err := ctx.Err(); err != nil {
		return ListPage{}, err
	}
	root := c.bucketPath(bucket)
	var objects []ObjectDescriptor
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || key <= token {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// removed while walking
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		objects = append(objects, ObjectDescriptor{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return ListPage{}, fmt.Errorf("list %s: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	page := ListPage{Objects: objects}
	if len(objects) > c.cfg.PageSize {
		page.Objects = objects[:c.cfg.PageSize]
		page.NextToken = page.Objects[len(page.Objects)-1].Key
	}
	return page, nil
}
