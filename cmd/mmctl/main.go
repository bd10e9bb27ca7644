// Copyright 2016-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command mmctl is a command-line client for the media manager REST
// API.  Every command prints the server's representation as JSON.
package main

import (
	"errors"
	"os"
	"strings"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restclient"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
	"github.com/urfave/cli"
)

var client *restclient.Client

// show writes a result as indented JSON on stdout.
func show(result interface{}) error {
	json := &codec.JsonHandle{}
	json.Indent = 2
	encoder := codec.NewEncoder(os.Stdout, json)
	if err := encoder.Encode(result); err != nil {
		return err
	}
	_, err := os.Stdout.WriteString("\n")
	return err
}

// oneArg returns the single positional argument of a command.
func oneArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New(c.Command.Name + " requires exactly one " + name)
	}
	return c.Args().First(), nil
}

func trashState(c *cli.Context) (state mediamanager.TrashState, err error) {
	err = state.UnmarshalText([]byte(c.String("trash")))
	return
}

var trashFlag = cli.StringFlag{
	Name:  "trash",
	Value: "out",
	Usage: "trash state to select: in, out, or any",
}

var listImages = cli.Command{
	Name:  "images",
	Usage: "list images, newest first",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "tag, t",
			Usage: "select images with this tag (repeatable)",
		},
		cli.BoolFlag{
			Name:  "all",
			Usage: "require every --tag to match",
		},
		cli.BoolFlag{
			Name:  "untagged",
			Usage: "select only images with no tags",
		},
		trashFlag,
	},
	Action: func(c *cli.Context) error {
		state, err := trashState(c)
		if err != nil {
			return err
		}
		reps, err := client.Images(restclient.ImageQuery{
			Tags:       c.StringSlice("tag"),
			MatchAll:   c.Bool("all"),
			Untagged:   c.Bool("untagged"),
			TrashState: state,
		})
		if err != nil {
			return err
		}
		return show(reps)
	},
}

var showImage = cli.Command{
	Name:      "image",
	Usage:     "show one image",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id, err := oneArg(c, "image id")
		if err != nil {
			return err
		}
		rep, err := client.Image(id)
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var renameImage = cli.Command{
	Name:      "rename",
	Usage:     "change the name of an image",
	ArgsUsage: "<id> <name>",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "rev",
			Usage: "fail unless this is the current revision",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("rename requires an image id and a name")
		}
		rep, err := client.UpdateImage(c.Args().Get(0), c.String("rev"), restdata.Rep{"name": c.Args().Get(1)})
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var trashImage = cli.Command{
	Name:      "trash",
	Usage:     "move an image to the trash",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id, err := oneArg(c, "image id")
		if err != nil {
			return err
		}
		rep, err := client.SendToTrash(id)
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var restoreImage = cli.Command{
	Name:      "restore",
	Usage:     "move an image out of the trash",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id, err := oneArg(c, "image id")
		if err != nil {
			return err
		}
		rep, err := client.RestoreFromTrash(id)
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var deleteImage = cli.Command{
	Name:      "delete",
	Usage:     "permanently delete an image, or with --trash, every image in that state",
	ArgsUsage: "[<id>]",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "trash",
			Usage: "delete every image in this trash state: in, out, or any",
		},
	},
	Action: func(c *cli.Context) error {
		if c.IsSet("trash") {
			state, err := trashState(c)
			if err != nil {
				return err
			}
			reps, err := client.DeleteImages(state)
			if err != nil {
				return err
			}
			return show(reps)
		}
		id, err := oneArg(c, "image id")
		if err != nil {
			return err
		}
		rep, err := client.DeleteImage(id)
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var listTags = cli.Command{
	Name:      "tags",
	Usage:     "list all tags, or the tags of some images",
	ArgsUsage: "[<id>...]",
	Action: func(c *cli.Context) error {
		var (
			tags []string
			err  error
		)
		if c.NArg() > 0 {
			tags, err = client.ImagesTags(c.Args())
		} else {
			tags, err = client.Tags()
		}
		if err != nil {
			return err
		}
		return show(tags)
	},
}

// tagCommand builds one of the tagger subcommands.
func tagCommand(name, usage string, apply func(*restclient.Client, []string, []string) error) cli.Command {
	return cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<tag>[,<tag>...] <id>...",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return errors.New(name + " requires a tag list and at least one image id")
			}
			tags := strings.Split(c.Args().First(), ",")
			return apply(client, c.Args().Tail(), tags)
		},
	}
}

var tagger = cli.Command{
	Name:  "tag",
	Usage: "change the tags on images",
	Subcommands: []cli.Command{
		tagCommand("add", "add tags to images", (*restclient.Client).AddTags),
		tagCommand("replace", "replace the tags on images", (*restclient.Client).ReplaceTags),
		tagCommand("remove", "remove tags from images", (*restclient.Client).RemoveTags),
	},
}

var startImport = cli.Command{
	Name:      "import",
	Usage:     "import a directory of images",
	ArgsUsage: "<dir>",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "app-id",
			Usage: "application the import is made for",
		},
		cli.BoolFlag{
			Name:  "recursive, r",
			Usage: "descend into subdirectories",
		},
	},
	Action: func(c *cli.Context) error {
		dir, err := oneArg(c, "directory")
		if err != nil {
			return err
		}
		rep, err := client.Import(restdata.ImportRequest{
			ImportDir: dir,
			AppID:     c.String("app-id"),
			Recursive: c.Bool("recursive"),
		})
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var listImporters = cli.Command{
	Name:  "importers",
	Usage: "list importers, newest first",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "n",
			Value: mediamanager.DefaultPageSize,
			Usage: "show this many importers",
		},
		cli.StringFlag{
			Name:  "cursor",
			Usage: "show the page at this cursor (\"\" for the first page)",
		},
		cli.IntFlag{
			Name:  "page-size",
			Usage: "importers per page",
		},
	},
	Action: func(c *cli.Context) error {
		if c.IsSet("cursor") || c.IsSet("page-size") {
			reps, paging, err := client.ImportersPage(c.String("cursor"), c.Int("page-size"))
			if err != nil {
				return err
			}
			return show(map[string]interface{}{"importers": reps, "paging": paging})
		}
		reps, err := client.RecentImporters(c.Int("n"))
		if err != nil {
			return err
		}
		return show(reps)
	},
}

var showImporter = cli.Command{
	Name:      "importer",
	Usage:     "show one importer",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "images",
			Usage: "include the imported images",
		},
		trashFlag,
	},
	Action: func(c *cli.Context) error {
		id, err := oneArg(c, "importer id")
		if err != nil {
			return err
		}
		var rep restdata.Rep
		if c.Bool("images") {
			state, err := trashState(c)
			if err != nil {
				return err
			}
			rep, err = client.ImporterImages(id, state)
			if err != nil {
				return err
			}
		} else {
			rep, err = client.Importer(id)
			if err != nil {
				return err
			}
		}
		return show(rep)
	},
}

var startSync = cli.Command{
	Name:  "sync",
	Usage: "start a storage synchronization",
	Action: func(c *cli.Context) error {
		rep, err := client.StartSync()
		if err != nil {
			return err
		}
		return show(rep)
	},
}

var showSync = cli.Command{
	Name:      "sync-state",
	Usage:     "show the state of a storage synchronization",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		id, err := oneArg(c, "synchronizer id")
		if err != nil {
			return err
		}
		rep, err := client.Synchronizer(id)
		if err != nil {
			return err
		}
		return show(rep)
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "mmctl"
	app.Usage = "talk to a media manager server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "url",
			Value:  "http://localhost:9000/v0/",
			Usage:  "base URL of the media manager API",
			EnvVar: "MEDIAMANAGER_URL",
		},
	}
	app.Commands = []cli.Command{
		listImages,
		showImage,
		renameImage,
		trashImage,
		restoreImage,
		deleteImage,
		listTags,
		tagger,
		startImport,
		listImporters,
		showImporter,
		startSync,
		showSync,
	}
	app.Before = func(c *cli.Context) (err error) {
		client, err = restclient.New(c.String("url"))
		return
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("mmctl failed")
	}
}
