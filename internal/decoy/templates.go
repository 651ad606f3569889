package decoy

var defaultServerPool = []string{
	"Apache/2.4.29 (Ubuntu)",
	"nginx/1.14.0 (Ubuntu)",
	"lighttpd/1.4.45",
	"Microsoft-IIS/10.0",
	"gunicorn/20.1.0",
	"AmazonS3",
}

var defaultFrameworkPool = []string{
	"PHP/7.3.11",
	"ASP.NET",
	"Express",
	"Django",
	"Werkzeug/2.0.1",
	"Node.js",
}

const shellBanner = "SSH-2.0-OpenSSH_7.4p1 Debian-10+deb9u6\r\n"

const decoyDirectoryListing = "-rw-r--r-- 1 root root    0 Jan 01 00:00 README.txt\r\n" +
	"drwxr-xr-x 2 root root 4096 Jan 01 00:00 data\r\n"

const wordpressLoginPage = "<html><body><h1>WordPress Login</h1>" +
	"<form><label>Username</label><input type='text' name='log' />" +
	"<label>Password</label><input type='password' name='pwd' />" +
	"<input type='submit' value='Log In' /></form>" +
	"</body></html>"

const phpMyAdminPage = "<html><body><h1>phpMyAdmin</h1>" +
	"<form><label>Username</label><input type='text' name='pma_username' />" +
	"<label>Password</label><input type='password' name='pma_password' />" +
	"<input type='submit' value='Go' /></form>" +
	"</body></html>"

const dotEnvBody = "APP_KEY=base64:psJxQ0ZkVJ9K8lkz2YoKZm\nDB_PASSWORD=secret"

const configPHPBody = "<?php\n$db_host='localhost';\n$db_user='root';\n$db_pass='password';\n?>"

const sqlErrorPage = "<html><body><h1>Products</h1><p>Product ID: 1</p><p>Name: Widget</p>" +
	"<p>You have an error in your SQL syntax; check the manual that corresponds " +
	"to your MySQL server version for the right syntax to use near '1' at line 1</p>" +
	"<form action='' method='post'><input name='id' /><input type='submit' value='Submit' /></form>" +
	"</body></html>"

const restrictedAdminPage = "<html><body><h1>Administration</h1><p>This area is restricted.</p>" +
	"<a href='/admin.php'>Admin</a>" +
	"</body></html>"

const blandWelcomePage = "<html><body><h1>Welcome</h1><p>Hello there!</p></body></html>"

const badRequestPage = "<html><body><h1>400 Bad Request</h1>" +
	"<p>Your browser sent a request that this server could not understand.</p>" +
	"</body></html>"

var genericBodies = []string{
	"<h1>Welcome to our site!</h1><p>Under construction...</p>",
	"<h1>Shop</h1><p>Out of stock.</p>",
	"<h1>Blog</h1><p>No posts yet.</p>",
	"<h1>404 Not Found</h1><p>The requested resource could not be found.</p>",
}
